package mcpserver

// DisplayRules describes how the portal turns marketplace payloads into
// displayable avatars and notification badges. LLM consumers read it before
// interpreting tool output.
const DisplayRules = `# Portal Display Rules

## Media references

A media field (profile image, social avatar) is one of:

- an absolute URL starting with ` + "`http://`" + ` or ` + "`https://`" + `: used as is;
- a relative path such as ` + "`/media/avatars/a.png`" + `: joined to the media base URL
  with exactly one slash between them;
- an uploaded photo preview: served from ` + "`/blobs/<handle>`" + ` while its surface is mounted;
- empty: nothing to display.

## Avatar priority

1. photo preview picked on the current surface
2. provider profile image
3. social avatar (session value, else the user record)
4. last avatar seen for the user (cache)
5. initials of the display name, else the username, else ` + "`?`" + `

## Notification badge

- 0 unread: hidden.
- 1 to 99 unread: the number.
- more than 99: ` + "`99+`" + `.

When the counter cannot be fetched the badge falls back to the last known
counter, then to zero. A timeout is reported as ` + "`TIMEOUT`" + ` and can be
retried; any other failure is ` + "`OTHER_ERROR`" + `.
`
