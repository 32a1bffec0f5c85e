// Package httpx holds response helpers for the fake TMDB API: JSON bodies, TMDB-style
// status errors and a status-tracking ResponseWriter.
package httpx

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"
)

// SendJsonRsp writes msg as a JSON body with the given status code. msg may be a
// pre-marshaled string or []byte, or any value encoding/json accepts.
func SendJsonRsp(ctx context.Context, w http.ResponseWriter, statusCode int, msg any) {
	var msgJson []byte
	switch m := msg.(type) {
	case string:
		msgJson = []byte(m)
	case []byte:
		msgJson = m
	default:
		var err error
		msgJson, err = json.Marshal(msg)
		if err != nil {
			log.Ctx(ctx).Error().Err(err).Msg("unable to marshal json")
			ErrInternal().Send(w)
			return
		}
	}
	if !json.Valid(msgJson) {
		log.Ctx(ctx).Error().Msg("refusing to send invalid json")
		ErrInternal().Send(w)
		return
	}
	w.Header().Set("Content-Type", "application/json;charset=utf-8")
	w.WriteHeader(statusCode)
	w.Write(msgJson)
}
