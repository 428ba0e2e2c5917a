package handlers

import (
	"net/http"
	"strings"
	"testing"

	"github.com/tunnelgate/panel/internal/crypto"
	"github.com/tunnelgate/panel/internal/database"
)

func TestCreateNodeEncryptsToken(t *testing.T) {
	setupTest(t)
	router := newTestRouter()

	rec := doRequest(t, router, http.MethodPost, "/api/v1/nodes",
		`{"name":"edge-1","address":"10.0.0.5","api_token":"secret-token"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		ID       string `json:"id"`
		Name     string `json:"name"`
		APIToken string `json:"api_token"`
	}
	decodeBody(t, rec, &resp)
	if resp.APIToken != "****oken" {
		t.Errorf("api_token = %q, want masked", resp.APIToken)
	}

	node, err := database.GetNode(resp.ID)
	if err != nil {
		t.Fatalf("load node: %v", err)
	}
	if node.APIToken == "secret-token" || node.APIToken == "" {
		t.Fatal("token stored in the clear or not at all")
	}
	plain, err := crypto.Decrypt(node.APIToken)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if plain != "secret-token" {
		t.Errorf("decrypted = %q", plain)
	}
}

func TestCreateNodeRequiresNameAndAddress(t *testing.T) {
	setupTest(t)
	router := newTestRouter()

	for _, body := range []string{
		`{"address":"10.0.0.5"}`,
		`{"name":"edge-1"}`,
	} {
		rec := doRequest(t, router, http.MethodPost, "/api/v1/nodes", body)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("body %s: status = %d, want 400", body, rec.Code)
		}
	}
}

func TestListNodesMasksTokens(t *testing.T) {
	setupTest(t)
	router := newTestRouter()

	createNode(t, "n1", "super-secret-value")
	createNode(t, "n2", "")

	rec := doRequest(t, router, http.MethodGet, "/api/v1/nodes", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if body := rec.Body.String(); strings.Contains(body, "super-secret-value") {
		t.Error("plaintext token leaked in list response")
	}

	var resp []struct {
		ID       string `json:"id"`
		APIToken string `json:"api_token"`
	}
	decodeBody(t, rec, &resp)
	if len(resp) != 2 {
		t.Fatalf("got %d nodes, want 2", len(resp))
	}
	for _, n := range resp {
		switch n.ID {
		case "n1":
			if n.APIToken != "****alue" {
				t.Errorf("n1 token = %q", n.APIToken)
			}
		case "n2":
			if n.APIToken != "" {
				t.Errorf("n2 token = %q, want empty", n.APIToken)
			}
		}
	}
}
