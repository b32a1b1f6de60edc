package identity

import (
	"context"
	"errors"
	"net/http"
	"reflect"
	"testing"

	"github.com/alfredjeanlab/cadence/internal/model"
)

func TestFromHeaders(t *testing.T) {
	h := http.Header{}
	h.Set(HeaderUserID, " 10 ")
	h.Set(HeaderRole, "startup")
	h.Set(HeaderAllowedRoles, "startup, mentor,,")

	id, err := FromHeaders(h)
	if err != nil {
		t.Fatalf("FromHeaders: %v", err)
	}
	want := Identity{UserID: 10, Role: "startup", AllowedRoles: []string{"startup", "mentor"}}
	if !reflect.DeepEqual(id, want) {
		t.Errorf("got %+v, want %+v", id, want)
	}
}

func TestFromHeaders_Missing(t *testing.T) {
	_, err := FromHeaders(http.Header{})
	if !errors.Is(err, model.ErrUnauthenticated) {
		t.Fatalf("err = %v, want ErrUnauthenticated", err)
	}
}

func TestFromHeaders_Malformed(t *testing.T) {
	h := http.Header{}
	h.Set(HeaderUserID, "abc")
	_, err := FromHeaders(h)
	if model.KindOf(err) != model.KindValidation {
		t.Fatalf("kind = %s, want ValidationError", model.KindOf(err))
	}
}

func TestAllows(t *testing.T) {
	id := Identity{AllowedRoles: []string{"startup", "mentor"}}
	if !id.Allows("mentor") {
		t.Error("mentor should be allowed")
	}
	if id.Allows("investor") {
		t.Error("investor should not be allowed")
	}
	if (Identity{}).Allows("startup") {
		t.Error("empty allowed roles should not match")
	}
}

func TestParseRoles(t *testing.T) {
	if got := ParseRoles(""); got != nil {
		t.Errorf("ParseRoles(\"\") = %v, want nil", got)
	}
	if got := ParseRoles(" a ,b"); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("ParseRoles = %v", got)
	}
}

func TestContextRoundTrip(t *testing.T) {
	if _, ok := FromContext(context.Background()); ok {
		t.Fatal("empty context should carry no identity")
	}
	ctx := WithIdentity(context.Background(), Identity{UserID: 7})
	id, ok := FromContext(ctx)
	if !ok || id.UserID != 7 {
		t.Fatalf("FromContext = (%+v, %v)", id, ok)
	}
}
