package support

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"github.com/MeKo-Tech/ppbatch/internal/engine/remote"
	"github.com/gorilla/websocket"
)

// OCRServer is a websocket OCR server with canned answers keyed by file name.
type OCRServer struct {
	server *httptest.Server

	mu       sync.Mutex
	texts    map[string]recognition
	failing  map[string]bool
	requests []remote.Request
}

type recognition struct {
	text  string
	score float64
}

// NewOCRServer starts the server.
func NewOCRServer() *OCRServer {
	s := &OCRServer{texts: map[string]recognition{}, failing: map[string]bool{}}
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	s.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer func() { _ = conn.Close() }()
		for {
			var req remote.Request
			if err := conn.ReadJSON(&req); err != nil {
				return
			}
			if err := conn.WriteJSON(s.answer(req)); err != nil {
				return
			}
		}
	}))
	return s
}

// URL returns the websocket endpoint.
func (s *OCRServer) URL() string {
	return "ws" + strings.TrimPrefix(s.server.URL, "http") + "/ws/ocr"
}

// Close stops the server.
func (s *OCRServer) Close() { s.server.Close() }

// Read makes the server recognize text with score in the named file.
func (s *OCRServer) Read(filename, text string, score float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.texts[filename] = recognition{text: text, score: score}
}

// Fail makes every request for the named file fail.
func (s *OCRServer) Fail(filename string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failing[filename] = true
}

// Requests returns the requests received so far.
func (s *OCRServer) Requests() []remote.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]remote.Request(nil), s.requests...)
}

func (s *OCRServer) answer(req remote.Request) map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)

	if s.failing[req.Filename] {
		return map[string]interface{}{
			"type": "error", "status": remote.StatusError,
			"error": "cannot process " + req.Filename, "error_type": "processing",
		}
	}

	rec, ok := s.texts[req.Filename]
	if !ok {
		rec = recognition{text: "Hello World", score: 0.92}
	}
	region := map[string]interface{}{
		"polygon":        []map[string]float64{{"X": 10, "Y": 10}, {"X": 100, "Y": 10}, {"X": 100, "Y": 30}, {"X": 10, "Y": 30}},
		"det_confidence": 0.95,
		"text":           rec.text,
		"rec_confidence": rec.score,
	}

	var result interface{}
	if req.Type == remote.TypeStructure {
		result = map[string]interface{}{"regions": []map[string]interface{}{
			{"type": "text", "box": []float64{10, 10, 100, 30}, "confidence": 0.9, "text_results": []interface{}{region}},
			{"type": "table", "box": []float64{0, 40, 200, 120}, "confidence": 0.85,
				"html": "<table><tr><td>" + rec.text + "</td></tr></table>", "cell_boxes": [][]float64{{0, 0, 100, 40}}},
		}}
	} else {
		result = map[string]interface{}{"width": 320, "height": 240, "regions": []interface{}{region}}
	}
	return map[string]interface{}{"type": "ocr_response", "status": remote.StatusCompleted, "result": result}
}
