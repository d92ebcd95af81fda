// Upload HTTP handler.
//
//   - POST /uploads (multipart, field "file")
//
// The file part is streamed straight to the pinning service; nothing is
// buffered on disk. The returned CID is what a creator then registers as
// content_hash.
package handlers

import (
	"errors"
	"io"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/libchain-registry/internal/http/middleware"
)

// UploadResponse describes a pinned file.
type UploadResponse struct {
	IpfsHash   string `json:"ipfs_hash"   example:"QmT78zSuBmuS4z925WZfrqQ1qHaJ56DQaTfyMUF7F8ff5o"`
	GatewayURL string `json:"gateway_url" example:"https://gateway.pinata.cloud/ipfs/QmT78zSuBmuS4z925WZfrqQ1qHaJ56DQaTfyMUF7F8ff5o"`
}

// UploadFile godoc
// @ID          uploadFile
// @Summary     Pin a file to IPFS
// @Description Streams the multipart "file" field to the pinning service and returns its CID.
// @Tags        Uploads
// @Accept      mpfd
// @Produce     json
// @Security    BearerAuth
//
// @Param       X-User-ID  header    string  false "Caller address (header auth mode)"
// @Param       file       formData  file    true  "File to pin"
//
// @Success     201  {object} handlers.UploadResponse
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     401  {object} handlers.ErrorResponse "Unauthorized"
// @Failure     413  {object} handlers.ErrorResponse "Too large"
// @Failure     502  {object} handlers.ErrorResponse "Pinning service error"
// @Failure     503  {object} handlers.ErrorResponse "Pinning not configured"
// @Router      /uploads [post]
func (h *Handlers) UploadFile(c *gin.Context) {
	if _, okp := caller(c); !okp {
		return
	}
	if h.opt.Pinner == nil || !h.opt.Pinner.Configured() {
		fail(c, http.StatusServiceUnavailable, ErrCodeUnavailable, "pinning service is not configured")
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.opt.MaxUploadBytes)

	mr, err := c.Request.MultipartReader()
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "multipart/form-data body required")
		return
	}
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, `missing "file" field`)
			return
		}
		if err != nil {
			failUploadRead(c, err)
			return
		}
		if part.FormName() != "file" || part.FileName() == "" {
			_ = part.Close()
			continue
		}

		name := filepath.Base(part.FileName())
		cid, err := h.opt.Pinner.Pin(c.Request.Context(), name, part)
		_ = part.Close()
		if err != nil {
			var mbe *http.MaxBytesError
			if errors.As(err, &mbe) {
				failUploadRead(c, err)
				return
			}
			middleware.LoggerFrom(c).Warn().Err(err).Str("filename", name).Msg("pin failed")
			fail(c, http.StatusBadGateway, ErrCodeBadGateway, "pinning service error")
			return
		}

		resp := UploadResponse{IpfsHash: cid}
		if h.opt.Gateway != nil {
			resp.GatewayURL = h.opt.Gateway.URL(cid)
		}
		ok(c, http.StatusCreated, resp)
		return
	}
}

func failUploadRead(c *gin.Context, err error) {
	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) {
		fail(c, http.StatusRequestEntityTooLarge, ErrCodeTooLarge, "upload exceeds size limit")
		return
	}
	fail(c, http.StatusBadRequest, ErrCodeBadRequest, "malformed multipart body")
}
