// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/memvault/memvault/internal/auth"
	"github.com/memvault/memvault/internal/database"
	"github.com/memvault/memvault/internal/store"
)

// memoryCreateRequest is the payload for creating a memory
type memoryCreateRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// memoryUpdateRequest is the payload for updating a memory. Timestamps
// are absent on purpose: updated_at is stamped server-side.
type memoryUpdateRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
}

// recordCreateRequest is the payload for creating a record
type recordCreateRequest struct {
	Content  string                 `json:"content"`
	Metadata map[string]interface{} `json:"metadata"`
}

// recordUpdateRequest is the payload for updating a record
type recordUpdateRequest struct {
	Content  *string                `json:"content"`
	Metadata map[string]interface{} `json:"metadata"`
}

// chatSendRequest is the payload for appending a chat message
type chatSendRequest struct {
	MemoryID uint   `json:"memory_id"`
	Role     string `json:"role"`
	Message  string `json:"message"`
}

// relevantContextLimit caps the records returned alongside a chat send
const relevantContextLimit = 3

// relevantContextItem is one relevance-ranked record in a chat send
// response
type relevantContextItem struct {
	recordResponse
	Similarity float32 `json:"similarity"`
}

// recordResponse mirrors MemoryRecord with metadata inlined as JSON
type recordResponse struct {
	ID        uint            `json:"id"`
	MemoryID  uint            `json:"memory_id"`
	UserID    string          `json:"user_id"`
	Content   string          `json:"content"`
	Metadata  json.RawMessage `json:"metadata"`
	CreatedAt string          `json:"created_at"`
}

func toRecordResponse(rec *database.MemoryRecord) recordResponse {
	meta := rec.Metadata
	if meta == "" {
		meta = "{}"
	}
	return recordResponse{
		ID:        rec.ID,
		MemoryID:  rec.MemoryID,
		UserID:    rec.UserID,
		Content:   rec.Content,
		Metadata:  json.RawMessage(meta),
		CreatedAt: rec.CreatedAt.UTC().Format("2006-01-02T15:04:05.999999Z07:00"),
	}
}

// HandleListMemories returns the caller's memories, most recent first
func (h *HTTPServer) HandleListMemories(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	memories, err := h.store.ListMemories(r.Context(), caller)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, memories)
}

// HandleCreateMemory creates a memory owned by the caller
func (h *HTTPServer) HandleCreateMemory(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req memoryCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}

	mem, err := h.store.CreateMemory(r.Context(), caller, req.Title, req.Description)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, mem)
}

// HandleGetMemory returns one memory by id
func (h *HTTPServer) HandleGetMemory(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid memory id")
		return
	}

	mem, err := h.store.GetMemory(r.Context(), caller, id)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, mem)
}

// HandleUpdateMemory applies a partial update to a memory
func (h *HTTPServer) HandleUpdateMemory(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid memory id")
		return
	}

	var req memoryUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}

	mem, err := h.store.UpdateMemory(r.Context(), caller, id, store.MemoryUpdate{
		Title:       req.Title,
		Description: req.Description,
	})
	if err != nil {
		h.writeStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, mem)
}

// HandleDeleteMemory deletes a memory and everything under it
func (h *HTTPServer) HandleDeleteMemory(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid memory id")
		return
	}

	if err := h.store.DeleteMemory(r.Context(), caller, id); err != nil {
		h.writeStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

// HandleListRecords returns the records of one memory, most recent first
func (h *HTTPServer) HandleListRecords(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	memoryID, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid memory id")
		return
	}

	records, err := h.store.ListRecords(r.Context(), caller, memoryID)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}

	out := make([]recordResponse, 0, len(records))
	for i := range records {
		out = append(out, toRecordResponse(&records[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleCreateRecord creates a record under one of the caller's memories
func (h *HTTPServer) HandleCreateRecord(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	memoryID, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid memory id")
		return
	}

	var req recordCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}

	rec, err := h.store.CreateRecord(r.Context(), caller, memoryID, req.Content, req.Metadata)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toRecordResponse(rec))
}

// HandleUpdateRecord revises a record's content or metadata
func (h *HTTPServer) HandleUpdateRecord(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	recordID, err := pathID(r, "recordID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid record id")
		return
	}

	var req recordUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}

	rec, err := h.store.UpdateRecord(r.Context(), caller, recordID, store.RecordUpdate{
		Content:  req.Content,
		Metadata: req.Metadata,
	})
	if err != nil {
		h.writeStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toRecordResponse(rec))
}

// HandleDeleteRecord deletes one record
func (h *HTTPServer) HandleDeleteRecord(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	recordID, err := pathID(r, "recordID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid record id")
		return
	}

	if err := h.store.DeleteRecord(r.Context(), caller, recordID); err != nil {
		h.writeStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

// HandleListMessages returns the transcript of one memory, most recent
// first, already capped by the retention enforcer
func (h *HTTPServer) HandleListMessages(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	memoryID, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid memory id")
		return
	}

	messages, err := h.store.ListMessages(r.Context(), caller, memoryID)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, messages)
}

// HandleSendMessage appends a chat message; an empty role defaults to
// the user role, matching how a chat client sends its own messages
func (h *HTTPServer) HandleSendMessage(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req chatSendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}

	role := req.Role
	if role == "" {
		role = database.RoleUser
	}

	msg, err := h.store.AppendMessage(r.Context(), caller, req.MemoryID, role, req.Message)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}

	// Surface the records most relevant to the message. Best effort:
	// the message is already stored, so a search failure only costs the
	// context, not the send.
	items := []relevantContextItem{}
	relevant, err := h.store.SearchRecords(r.Context(), caller, req.MemoryID, req.Message, relevantContextLimit)
	if err != nil {
		h.log.WithError(err).Warn("relevance search failed for chat send")
	}
	for i := range relevant {
		items = append(items, relevantContextItem{
			recordResponse: toRecordResponse(&relevant[i].Record),
			Similarity:     relevant[i].Similarity,
		})
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message":          msg,
		"relevant_context": items,
	})
}

// pathID parses a numeric path parameter
func pathID(r *http.Request, name string) (uint, error) {
	raw := r.PathValue(name)
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, err
	}
	return uint(id), nil
}

// writeStoreError maps store errors to HTTP status codes. Not-found and
// unauthorized are the same response on purpose.
func (h *HTTPServer) writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "Not found")
	case store.IsValidation(err):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		h.log.WithError(err).Error("store operation failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// writeJSON writes a JSON response with the given status
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response
func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
