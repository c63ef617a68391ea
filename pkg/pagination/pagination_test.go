package pagination

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func paramsFor(query string) Params {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/"+query, nil)
	return FromContext(e.NewContext(req, httptest.NewRecorder()))
}

func TestFromContext_Defaults(t *testing.T) {
	p := paramsFor("")
	if p.Limit != DefaultLimit {
		t.Errorf("expected default limit %d, got %d", DefaultLimit, p.Limit)
	}
	if p.Offset != 0 {
		t.Errorf("expected default offset 0, got %d", p.Offset)
	}
}

func TestFromContext_CustomValues(t *testing.T) {
	p := paramsFor("?limit=50&offset=10")
	if p.Limit != 50 || p.Offset != 10 {
		t.Errorf("expected 50/10, got %d/%d", p.Limit, p.Offset)
	}
}

func TestFromContext_Clamps(t *testing.T) {
	p := paramsFor("?limit=5000&offset=-3")
	if p.Limit != MaxLimit {
		t.Errorf("expected limit clamped to %d, got %d", MaxLimit, p.Limit)
	}
	if p.Offset != 0 {
		t.Errorf("expected offset clamped to 0, got %d", p.Offset)
	}
}

func TestNewResponse_HasMore(t *testing.T) {
	if r := NewResponse(nil, 10, 5, 0); !r.HasMore {
		t.Error("expected has_more for first of two pages")
	}
	if r := NewResponse(nil, 10, 5, 5); r.HasMore {
		t.Error("expected no more pages on the last page")
	}
}
