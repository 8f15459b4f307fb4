package api

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v5"

	"github.com/samcharles93/nextword/internal/predict"
	"github.com/samcharles93/nextword/internal/webui"
)

func (s *Server) handleIndex(c *echo.Context) error {
	return s.renderForm(c, c.QueryParam("text"), c.QueryParam("words"))
}

func (s *Server) handleForm(c *echo.Context) error {
	return s.renderForm(c, c.FormValue("text"), c.FormValue("words"))
}

// renderForm renders the page for one submission. Blank text renders the
// empty form and never reaches the model.
func (s *Server) renderForm(c *echo.Context, text, wordsRaw string) error {
	page := webui.Page{
		Text:     text,
		Words:    predict.DefaultWords,
		MinWords: predict.MinWords,
		MaxWords: predict.MaxWords,
	}
	status := http.StatusOK

	words, err := parseIntParam("words", wordsRaw, predict.DefaultWords)
	switch {
	case err != nil:
		page.Error = err.Error()
		status = http.StatusBadRequest
	case words < predict.MinWords || words > predict.MaxWords:
		page.Words = words
		page.Error = fmt.Sprintf("words must be between %d and %d", predict.MinWords, predict.MaxWords)
		status = http.StatusBadRequest
	default:
		page.Words = words
	}

	if page.Error == "" && strings.TrimSpace(text) != "" {
		pred, _, err := s.predict(c.Request().Context(), predict.Request{Text: text, Words: words, TopN: predict.DefaultTopN})
		switch {
		case errors.Is(err, predict.ErrUnrecognizedInput):
			page.Warning = predict.UnknownWordsWarning
		case err != nil:
			status, _ = classify(err)
			if status >= http.StatusInternalServerError {
				s.log.Error("prediction failed", "error", err)
			}
			page.Error = err.Error()
		default:
			page.Model = pred.Model
			page.Elapsed = fmt.Sprintf("%.1f ms", pred.ElapsedMillis())
			for _, comp := range pred.Completions {
				page.Results = append(page.Results, webui.Result{
					Rank:         comp.Rank,
					Prompt:       comp.Prompt,
					Continuation: comp.Continuation(),
				})
			}
		}
	}

	var buf bytes.Buffer
	if err := webui.Render(&buf, page); err != nil {
		return writeError(c, http.StatusInternalServerError, errTypeServer, err.Error(), "")
	}
	return c.HTML(status, buf.String())
}
