// ABOUTME: Handlers for the caller's profile and profile picture
// ABOUTME: Pictures live in the object store under the caller's identity prefix

package api

import (
	"encoding/json"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/oakledger/oakledger/internal/store"
)

// maxPictureBytes caps profile picture uploads.
const maxPictureBytes = 5 << 20

// ProfileRequest is the JSON request body for PUT /profile.
type ProfileRequest struct {
	Name        string `json:"name"`
	HeightCM    int    `json:"height_cm"`
	Gender      string `json:"gender"`
	DateOfBirth string `json:"dob"`
}

// handleGetProfile handles GET /profile.
func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	p, session, ok := s.userSession(w, r)
	if !ok {
		return
	}

	profile, err := s.ledger(session).GetProfile(r.Context(), p.Username)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// handlePutProfile handles PUT /profile, creating or replacing the caller's
// profile row. Identity fields always come from the verified token, never
// from the body.
func (s *Server) handlePutProfile(w http.ResponseWriter, r *http.Request) {
	p, session, ok := s.userSession(w, r)
	if !ok {
		return
	}

	var req ProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	ledger := s.ledger(session)
	profile := &store.Profile{
		UserName:    p.Username,
		Sub:         p.Subject,
		Name:        req.Name,
		HeightCM:    req.HeightCM,
		Gender:      req.Gender,
		DateOfBirth: req.DateOfBirth,
		IdentityID:  session.IdentityID,
	}

	// Preserve picture fields across profile rewrites.
	if existing, err := ledger.GetProfile(r.Context(), p.Username); err == nil {
		profile.ProfilePicKey = existing.ProfilePicKey
		profile.ProfilePicURL = existing.ProfilePicURL
	}

	if err := ledger.PutProfile(r.Context(), profile); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// handleUploadPicture handles POST /profile/picture (multipart form, field
// "file"). The object key is recorded on the profile and a fresh presigned
// URL is returned.
func (s *Server) handleUploadPicture(w http.ResponseWriter, r *http.Request) {
	p, session, ok := s.userSession(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxPictureBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		sendJSONError(w, http.StatusBadRequest, "multipart field \"file\" is required")
		return
	}
	defer file.Close()

	ext := strings.TrimPrefix(filepath.Ext(header.Filename), ".")
	if ext == "" {
		sendJSONError(w, http.StatusBadRequest, "filename needs an extension")
		return
	}
	contentType := header.Header.Get("Content-Type")

	media := s.media(session)
	key, err := media.UploadProfilePicture(r.Context(), session.IdentityID, ext, contentType, file)
	if err != nil {
		if strings.Contains(err.Error(), "not an image") {
			sendJSONError(w, http.StatusBadRequest, "only image uploads are accepted")
			return
		}
		s.writeError(w, r, err)
		return
	}

	url, err := media.ProfilePictureURL(r.Context(), session.IdentityID, ext)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	ledger := s.ledger(session)
	profile, err := ledger.GetProfile(r.Context(), p.Username)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	profile.ProfilePicKey = key
	profile.ProfilePicURL = url
	if err := ledger.PutProfile(r.Context(), profile); err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"profile_pic_key": key,
		"profile_pic_url": url,
	})
}

// handlePictureURL handles GET /profile/picture, returning a fresh presigned
// URL for the stored picture. Old URLs expire; this mints a new one.
func (s *Server) handlePictureURL(w http.ResponseWriter, r *http.Request) {
	p, session, ok := s.userSession(w, r)
	if !ok {
		return
	}

	profile, err := s.ledger(session).GetProfile(r.Context(), p.Username)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if profile.ProfilePicKey == "" {
		sendJSONError(w, http.StatusNotFound, "no profile picture")
		return
	}

	ext := strings.TrimPrefix(filepath.Ext(profile.ProfilePicKey), ".")
	url, err := s.media(session).ProfilePictureURL(r.Context(), session.IdentityID, ext)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"profile_pic_url": url})
}
