package group

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
)

func doJSON(t *testing.T, app *fiber.App, method, path, body string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

func TestGroupHandlers(t *testing.T) {
	c, _ := newTestCoordinator(CoordinatorConfig{})
	app := fiber.New()
	RegisterRoutes(app.Group("/group"), c, NewInvites("secret", "ride-1", 0, nil))

	if resp := doJSON(t, app, http.MethodPost, "/group/playback", `{"action":"play","trackId":"t1"}`); resp.StatusCode != http.StatusOK {
		t.Fatalf("play status = %d", resp.StatusCode)
	}
	if resp := doJSON(t, app, http.MethodPost, "/group/playback", `{"action":"seek","positionSeconds":-3}`); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("negative seek status = %d", resp.StatusCode)
	}
	if resp := doJSON(t, app, http.MethodPost, "/group/playback", `{"action":"dance"}`); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("unknown action status = %d", resp.StatusCode)
	}
	if resp := doJSON(t, app, http.MethodPost, "/group/mute", `{"music":true,"voice":false}`); resp.StatusCode != http.StatusOK {
		t.Fatalf("mute status = %d", resp.StatusCode)
	}

	resp := doJSON(t, app, http.MethodPost, "/group/requests", `{"title":"Anthem"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("request status = %d", resp.StatusCode)
	}
	var req SongRequest
	_ = json.NewDecoder(resp.Body).Decode(&req)

	if resp := doJSON(t, app, http.MethodPost, "/group/requests/"+req.ID+"/approve", ""); resp.StatusCode != http.StatusOK {
		t.Fatalf("approve status = %d", resp.StatusCode)
	}
	if resp := doJSON(t, app, http.MethodPost, "/group/requests/"+req.ID+"/reject", ""); resp.StatusCode != http.StatusConflict {
		t.Fatalf("reject after approve status = %d", resp.StatusCode)
	}
	if resp := doJSON(t, app, http.MethodPost, "/group/requests/missing/approve", ""); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("missing request status = %d", resp.StatusCode)
	}

	resp, _ = app.Test(httptest.NewRequest(http.MethodGet, "/group/state", nil))
	var state State
	_ = json.NewDecoder(resp.Body).Decode(&state)
	if state.Playback.TrackID != "t1" || !state.Mute.Music || len(state.SongQueue) != 0 {
		t.Fatalf("unexpected state %+v", state)
	}

	resp, _ = app.Test(httptest.NewRequest(http.MethodGet, "/group/requests/history", nil))
	var history []SongRequest
	_ = json.NewDecoder(resp.Body).Decode(&history)
	if len(history) != 1 || history[0].Status != RequestApproved {
		t.Fatalf("unexpected history %+v", history)
	}

	resp = doJSON(t, app, http.MethodPost, "/group/invites", `{"peerId":"r1"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("invite status = %d", resp.StatusCode)
	}
	var body struct {
		Token string `json:"token"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&body)
	if body.Token == "" {
		t.Fatalf("expected invite token")
	}
}

func TestGroupInvitesDisabled(t *testing.T) {
	c, _ := newTestCoordinator(CoordinatorConfig{})
	app := fiber.New()
	RegisterRoutes(app.Group("/group"), c, nil)

	if resp := doJSON(t, app, http.MethodPost, "/group/invites", `{}`); resp.StatusCode != http.StatusNotImplemented {
		t.Fatalf("invite status = %d", resp.StatusCode)
	}
}
