package http

import (
	"bytes"
	"errors"
	"net/http"
	"strings"
	"time"

	"contas/internal/csvcodec"
	"contas/internal/services"
)

const csvContentType = "text/csv; charset=utf-8"

// handleExportCSV renders the whole file before writing so a failure can
// still produce a JSON error.
func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter, err := parseFilter(q)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var buf bytes.Buffer
	if _, err := s.deps.Exchange.Export(r.Context(), ownerID(r), &buf, filter); err != nil {
		writeError(w, r, err)
		return
	}
	writeCSV(w, "transacoes_"+time.Now().Format("2006-01-02")+".csv", buf.Bytes())
}

func (s *Server) handleImportCSV(w http.ResponseWriter, r *http.Request) {
	f, err := formFile(w, r, s.opts.MaxUploadBytes)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer f.Close()

	res, err := s.deps.Exchange.Import(r.Context(), ownerID(r), f, services.ImportOptions{
		DefaultCompanyID: strings.TrimSpace(r.FormValue("company_id")),
	})
	if err != nil {
		var aborted *services.ImportAbortedError
		if errors.As(err, &aborted) {
			status, detail := failure(r, err)
			writeJSON(w, status, importFailureBody{
				errorBody:    errorBody{Error: detail},
				ImportResult: aborted.Result,
			})
			return
		}
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// importFailureBody is the error body of an aborted import. It also
// carries the rows already committed so a client does not upload them
// twice.
type importFailureBody struct {
	errorBody
	services.ImportResult
}

func (s *Server) handleImportTemplate(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := csvcodec.Template(&buf); err != nil {
		writeError(w, r, err)
		return
	}
	writeCSV(w, "modelo_importacao.csv", buf.Bytes())
}

func writeCSV(w http.ResponseWriter, filename string, body []byte) {
	w.Header().Set("Content-Type", csvContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
