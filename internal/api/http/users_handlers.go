package http

import (
	"bufio"
	"encoding/json"
	"net/http"
	"strings"

	auth "github.com/mind-engage/satresults/internal/auth/middleware"
	"github.com/mind-engage/satresults/internal/users"
)

// POST /users/bulk  JSON array body, or multipart file= holding CSV or JSON
func (s *server) bulkUpsertUsers(w http.ResponseWriter, r *http.Request) {
	var rows []users.Row
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		r.Body = http.MaxBytesReader(w, r.Body, maxBody)
		f, _, err := r.FormFile("file")
		if err != nil {
			writeError(w, http.StatusBadRequest, "file required", nil)
			return
		}
		defer f.Close()
		br := bufio.NewReader(f)
		// sniff CSV vs JSON by the first non-space byte
		first := byte(0)
		for {
			b, err := br.Peek(1)
			if err != nil {
				writeError(w, http.StatusBadRequest, "empty file", nil)
				return
			}
			if b[0] != ' ' && b[0] != '\n' && b[0] != '\r' && b[0] != '\t' {
				first = b[0]
				break
			}
			_, _ = br.ReadByte()
		}
		if first == '[' {
			if err := json.NewDecoder(br).Decode(&rows); err != nil {
				writeError(w, http.StatusBadRequest, "bad json", nil)
				return
			}
		} else if rows, err = users.ParseCSV(br); err != nil {
			writeError(w, http.StatusBadRequest, "bad csv: "+err.Error(), nil)
			return
		}
	} else if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody)).Decode(&rows); err != nil {
		writeError(w, http.StatusBadRequest, "expected JSON array or multipart file", nil)
		return
	}
	batch := struct {
		Rows []users.Row `json:"rows" validate:"max=5000,dive"`
	}{rows}
	if err := validate.Struct(batch); err != nil {
		fail(w, s.Log, err)
		return
	}
	if len(rows) == 0 {
		writeJSON(w, http.StatusOK, map[string]int{"inserted": 0, "updated": 0})
		return
	}
	ins, upd, err := s.Users.BulkUpsert(r.Context(), rows)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"inserted": ins, "updated": upd})
}

// GET /users?role=
func (s *server) listUsers(w http.ResponseWriter, r *http.Request) {
	out, err := s.Users.List(r.Context(), r.URL.Query().Get("role"))
	if err != nil {
		fail(w, s.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

type changePasswordReq struct {
	OldPassword string `json:"old_password" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=6,max=128"`
}

// POST /users/me/password
func (s *server) changePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordReq
	if err := decode(w, r, &req); err != nil {
		fail(w, s.Log, err)
		return
	}
	if err := s.Users.ChangePassword(r.Context(), auth.SubjectFromContext(r.Context()), req.OldPassword, req.NewPassword); err != nil {
		fail(w, s.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
