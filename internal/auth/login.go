package auth

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"os"
)

// LoginRequest is the login request body.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse is the successful login response.
type LoginResponse struct {
	Token    string `json:"token"`
	Username string `json:"username"`
}

// LoginHandler authenticates the service account configured via API_USER and
// API_PASSWORD and issues a JWT.
func LoginHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
		return
	}
	if req.Username == "" || req.Password == "" {
		http.Error(w, `{"error":"username and password are required"}`, http.StatusBadRequest)
		return
	}

	expectedUser := os.Getenv("API_USER")
	expectedPass := os.Getenv("API_PASSWORD")
	if expectedUser == "" || expectedPass == "" {
		http.Error(w, `{"error":"login is not configured"}`, http.StatusServiceUnavailable)
		return
	}

	userOK := subtle.ConstantTimeCompare([]byte(req.Username), []byte(expectedUser)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(req.Password), []byte(expectedPass)) == 1
	if !userOK || !passOK {
		http.Error(w, `{"error":"invalid credentials"}`, http.StatusUnauthorized)
		return
	}

	token, err := GenerateToken(req.Username)
	if err != nil {
		http.Error(w, `{"error":"failed to issue token"}`, http.StatusInternalServerError)
		return
	}

	json.NewEncoder(w).Encode(LoginResponse{Token: token, Username: req.Username})
}
