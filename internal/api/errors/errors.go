// Пакет errors — запись ответов с ошибками Media Module.
// Формат плоский, совместимый с клиентом dashboard:
//   - upload и медиа-endpoints: {"error": "..."};
//   - список видео: {"message": "..."}.
package errors

import (
	"encoding/json"
	"net/http"
)

// Тексты ошибок, на которые опирается клиент. Менять нельзя.
const (
	MsgUnauthorized       = "Unauthorized"
	MsgFileNotFound       = "File not found"
	MsgImageUploadFailed  = "Upload image failed"
	MsgVideoUploadFailed  = "Image Upload Failed"
	MsgListVideosFailed   = "Error in Retrieving Videos"
	MsgDeliveryNotEnabled = "Media delivery is not configured"
)

// errorBody — {"error": "..."}.
type errorBody struct {
	Error string `json:"error"`
}

// messageBody — {"message": "..."}.
type messageBody struct {
	Message string `json:"message"`
}

// WriteError записывает {"error": message} с указанным статусом.
func WriteError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, errorBody{Error: message})
}

// WriteMessage записывает {"message": message} с указанным статусом.
func WriteMessage(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, messageBody{Message: message})
}

func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(body)
}

// --- Конструкторы для типичных ошибок ---

// Unauthorized — 401 {"error":"Unauthorized"}.
func Unauthorized(w http.ResponseWriter) {
	WriteError(w, http.StatusUnauthorized, MsgUnauthorized)
}

// FileNotFound — 404 {"error":"File not found"}: в форме нет поля file.
func FileNotFound(w http.ResponseWriter) {
	WriteError(w, http.StatusNotFound, MsgFileNotFound)
}

// ValidationError — 400 некорректные параметры запроса.
func ValidationError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, message)
}

// InternalError — 500 с фиксированным текстом.
func InternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, message)
}

// NotImplemented — 501 функция недоступна в текущей конфигурации.
func NotImplemented(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotImplemented, message)
}
