package endpoints

import (
	"encoding/json"
	"net/http"
)

type APIResponse struct {
	Status    bool        `json:"status"`
	Value     interface{} `json:"value,omitempty"`
	Error     string      `json:"error,omitempty"`
	ErrorCode int         `json:"error_code"`
}

func (res APIResponse) WriteErrorResponseWithStatusCode(w http.ResponseWriter, err error, statusCode int) {
	res.WriteMessageWithStatusCode(w, err, err.Error(), statusCode)
}

// WriteMessageWithStatusCode reports err by its code but shows the caller message
// instead of the internal error text.
func (res APIResponse) WriteMessageWithStatusCode(w http.ResponseWriter, err error, message string, statusCode int) {
	res.Status = false
	res.Error = message
	if statusCode == http.StatusUnauthorized {
		res.ErrorCode = API_UNAUTHORIZED
	} else {
		res.ErrorCode = GetErrorCode(err)
	}

	res.write(w, statusCode)
}

func (res APIResponse) WriteResultResponse(w http.ResponseWriter, result interface{}) {
	res.WriteResultWithStatusCode(w, result, http.StatusOK)
}

func (res APIResponse) WriteResultWithStatusCode(w http.ResponseWriter, result interface{}, statusCode int) {
	res.Status = true
	res.Value = result
	res.ErrorCode = GetErrorCode(nil)

	res.write(w, statusCode)
}

func (res APIResponse) write(w http.ResponseWriter, statusCode int) {
	body, _ := json.Marshal(res)

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(statusCode)
	w.Write(body)
}
