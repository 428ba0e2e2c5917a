package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/tunnelgate/panel/internal/crypto"
	"github.com/tunnelgate/panel/internal/database"
)

type nodeResponse struct {
	database.Node
	APITokenMasked string `json:"api_token"`
}

func maskNode(n database.Node) nodeResponse {
	token, err := crypto.Decrypt(n.APIToken)
	if err != nil {
		token = ""
	}
	return nodeResponse{Node: n, APITokenMasked: crypto.Mask(token)}
}

// ListNodes handles GET /nodes. Tokens are returned masked.
func ListNodes(w http.ResponseWriter, r *http.Request) {
	nodes, err := database.ListNodes()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list nodes")
		return
	}

	resp := make([]nodeResponse, len(nodes))
	for i, n := range nodes {
		resp[i] = maskNode(n)
	}
	writeJSON(w, http.StatusOK, resp)
}

type createNodeRequest struct {
	Name     string `json:"name"`
	Address  string `json:"address"`
	APIToken string `json:"api_token"`
}

// CreateNode handles POST /nodes. The agent token is stored encrypted.
func CreateNode(w http.ResponseWriter, r *http.Request) {
	var req createNodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Name == "" || req.Address == "" {
		writeError(w, http.StatusBadRequest, "Name and address are required")
		return
	}

	encrypted := ""
	if req.APIToken != "" {
		var err error
		encrypted, err = crypto.Encrypt(req.APIToken)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to encrypt token")
			return
		}
	}

	node := database.Node{
		ID:       uuid.NewString(),
		Name:     req.Name,
		Address:  req.Address,
		APIToken: encrypted,
	}
	if err := database.DB.Create(&node).Error; err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create node")
		return
	}
	writeJSON(w, http.StatusCreated, maskNode(node))
}
