package res

import (
	"encoding/json"
	"net/http"

	"github.com/dvigi/clubdvigi-api/pkg/logger"
)

// ErrorResponse представляет формат JSON-ответа для ошибок.
type ErrorResponse struct {
	OK      bool   `json:"ok"`
	Error   string `json:"error"`             // Код ошибки (для программной обработки)
	Where   string `json:"where,omitempty"`   // Этап, на котором произошла ошибка
	Status  int    `json:"status,omitempty"`  // HTTP статус внешнего API
	Details string `json:"details,omitempty"` // Усеченные детали ошибки
	Hint    string `json:"hint,omitempty"`    // Подсказка для вызывающей стороны
}

// JsonResponse отправляет JSON-ответ с заданным статусом.
func JsonResponse(w http.ResponseWriter, data any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// JsonErrorResponse отправляет JSON ответ ошибки.
func JsonErrorResponse(w http.ResponseWriter, errResponse ErrorResponse, status int, log *logger.Logger) {
	JsonResponse(w, errResponse, status)
	log.Error("Response error [%d]: %s %s", status, errResponse.Error, errResponse.Details)
}
