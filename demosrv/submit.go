package demosrv

import (
	"fmt"
	"io"
	"net/http"

	"github.com/programme-lv/extserver/akey"
	"github.com/programme-lv/extserver/logger"
)

// handleSubmit receives a multipart submission upload. The declared
// filehash must match the digest of the received bytes; a mismatch
// means the file was corrupted or swapped after signing.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	req, ok := s.verify(w, r)
	if !ok {
		return
	}
	if req.effectiveAction != akey.ActionSubmit {
		http.Error(w, "upload endpoint only accepts submit", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "missing file part", http.StatusBadRequest)
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, "unreadable file part", http.StatusBadRequest)
		return
	}

	gotHash, err := akey.DigestHex(content, s.cfg.hashAlgorithm())
	if err != nil || gotHash != req.form.Get(akey.ParamFilehash) {
		http.Error(w, "file hash mismatch", http.StatusBadRequest)
		return
	}

	key := fmt.Sprintf("%s/%s/%s",
		req.form.Get(akey.ParamCourseID),
		req.form.Get(akey.ParamAssignID),
		header.Filename)
	mediaType := header.Header.Get("Content-Type")
	if err := s.blobs.Save(r.Context(), key, content, mediaType); err != nil {
		logger.FromContext(r.Context()).Error("storing submission failed",
			"key", key, "err", err)
		http.Error(w, "could not store submission", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/plain")
	fmt.Fprint(w, "OK")
}
