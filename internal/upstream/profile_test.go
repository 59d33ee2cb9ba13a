package upstream

import (
	"context"
	"net/http"
	"sync/atomic"
	"testing"

	"github.com/destinyjobs/portal/internal/apperr"
)

func validUpdate() ProviderProfileUpdate {
	return ProviderProfileUpdate{
		FirstName:  "Amina",
		LastName:   "Kouassi",
		Title:      "Plumber",
		Phone:      "+237 699 00 11 22",
		CountryID:  "cm",
		Skills:     []string{"plumbing"},
		HourlyRate: 12.5,
	}
}

func TestUpdateValidationGate(t *testing.T) {
	var hits atomic.Int32
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(`{}`))
	}), Options{})

	upd := validUpdate()
	upd.Title = ""
	upd.CountryID = ""

	_, err := c.UpdateProviderProfile(context.Background(), "u1", upd)
	ve, ok := apperr.AsValidation(err)
	if !ok {
		t.Fatalf("err = %v, want ValidationError", err)
	}
	if _, ok := ve.Fields["title"]; !ok {
		t.Errorf("fields = %v, want title", ve.Fields)
	}
	if _, ok := ve.Fields["country_id"]; !ok {
		t.Errorf("fields = %v, want country_id", ve.Fields)
	}
	if ve.Kind() != apperr.KindValidationError {
		t.Errorf("kind = %s", ve.Kind())
	}
	if hits.Load() != 0 {
		t.Errorf("invalid update reached the API %d times", hits.Load())
	}
}

func TestUpdateSendsValidProfile(t *testing.T) {
	var method string
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		_, _ = w.Write([]byte(`{"user_id":"u1","title":"Plumber"}`))
	}), Options{})

	p, err := c.UpdateProviderProfile(context.Background(), "u1", validUpdate())
	if err != nil {
		t.Fatalf("UpdateProviderProfile: %v", err)
	}
	if method != http.MethodPatch || p.Title != "Plumber" {
		t.Errorf("method = %s, profile = %+v", method, p)
	}
}

func TestValidateFormats(t *testing.T) {
	upd := validUpdate()
	upd.Phone = "call me"
	upd.HourlyRate = -1
	ve, ok := apperr.AsValidation(upd.Validate())
	if !ok {
		t.Fatal("expected validation error")
	}
	for _, f := range []string{"phone", "hourly_rate"} {
		if _, ok := ve.Fields[f]; !ok {
			t.Errorf("missing field %s in %v", f, ve.Fields)
		}
	}
	if err := validUpdate().Validate(); err != nil {
		t.Errorf("valid update rejected: %v", err)
	}
}
