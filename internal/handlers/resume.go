package handlers

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/coders-clan/cv-rag-agent/internal/logger"
	"github.com/coders-clan/cv-rag-agent/internal/services"
)

// maxResumeBytes bounds a single uploaded file.
const maxResumeBytes = 2 << 20

type ResumeHandler struct {
	log           *logger.Logger
	resumeService services.ResumeService
}

func NewResumeHandler(log *logger.Logger, resumeService services.ResumeService) *ResumeHandler {
	return &ResumeHandler{
		log:           log.With("handler", "ResumeHandler"),
		resumeService: resumeService,
	}
}

// POST /api/resumes/upload
// Multipart batch upload of .txt resumes. Each file succeeds or fails
// independently; the response carries both lists.
func (h *ResumeHandler) Upload(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_form", err)
		return
	}
	files := form.File["files"]
	if len(files) == 0 {
		RespondError(c, http.StatusBadRequest, "no_files", fmt.Errorf("no files provided under 'files'"))
		return
	}
	positionTag := strings.TrimSpace(c.PostForm("position_tag"))

	uploaded := make([]gin.H, 0, len(files))
	uploadErrors := make([]gin.H, 0)
	fail := func(name string, err error) {
		uploadErrors = append(uploadErrors, gin.H{"file": name, "error": err.Error()})
	}

	for _, fh := range files {
		name := fh.Filename
		if !strings.HasSuffix(strings.ToLower(name), ".txt") {
			fail(name, fmt.Errorf("only .txt files are supported"))
			continue
		}
		if fh.Size > maxResumeBytes {
			fail(name, fmt.Errorf("file exceeds %d bytes", maxResumeBytes))
			continue
		}

		f, err := fh.Open()
		if err != nil {
			fail(name, fmt.Errorf("open file: %w", err))
			continue
		}
		raw, err := io.ReadAll(io.LimitReader(f, maxResumeBytes+1))
		f.Close()
		if err != nil {
			fail(name, fmt.Errorf("read file: %w", err))
			continue
		}

		resume, err := h.resumeService.Ingest(c.Request.Context(), name, string(raw), positionTag)
		if err != nil {
			h.log.Warn("Resume ingest failed", "file", name, "error", err)
			fail(name, err)
			continue
		}
		uploaded = append(uploaded, gin.H{
			"id":               resume.ID,
			"candidate_name":   resume.CandidateName,
			"file_name":        resume.FileName,
			"position_tag":     resume.PositionTag,
			"sections_count":   resume.SectionsCount,
			"embedding_status": resume.EmbeddingStatus,
		})
	}

	RespondOK(c, gin.H{"uploaded": uploaded, "errors": uploadErrors})
}

// GET /api/resumes?position_tag=
func (h *ResumeHandler) List(c *gin.Context) {
	resumes, err := h.resumeService.List(c.Request.Context(), c.Query("position_tag"))
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"resumes": resumes, "count": len(resumes)})
}

// DELETE /api/resumes/:id
func (h *ResumeHandler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_id", fmt.Errorf("invalid resume id"))
		return
	}
	if err := h.resumeService.Delete(c.Request.Context(), id); err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"deleted": id})
}
