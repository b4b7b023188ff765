// Package remote is an engine backend that sends images to an OCR server
// over a websocket and reads back the results.
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/MeKo-Tech/ppbatch/internal/engine"
	"github.com/MeKo-Tech/ppbatch/internal/imageio"
	"github.com/MeKo-Tech/ppbatch/internal/result"
	"github.com/gorilla/websocket"
)

// Name is the backend name used in configuration.
const Name = "remote"

const defaultTimeout = 60 * time.Second

func init() {
	engine.Register(Name, func(opts engine.Options) (engine.Engine, error) {
		return Dial(context.Background(), opts)
	})
}

// ServerError is an error frame sent by the server.
type ServerError struct {
	Type    string
	Message string
}

func (e *ServerError) Error() string {
	if e.Type == "" {
		return "ocr server: " + e.Message
	}
	return fmt.Sprintf("ocr server (%s): %s", e.Type, e.Message)
}

// Client is a websocket connection to an OCR server. Requests are sent one
// at a time.
type Client struct {
	conn    *websocket.Conn
	opts    engine.Options
	timeout time.Duration
	logger  *slog.Logger

	mu sync.Mutex
}

// Dial connects to opts.Endpoint.
func Dial(ctx context.Context, opts engine.Options) (*Client, error) {
	if opts.Endpoint == "" {
		return nil, errors.New("remote engine: empty endpoint")
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: timeout,
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
	}
	conn, resp, err := dialer.DialContext(ctx, opts.Endpoint, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", opts.Endpoint, err)
	}
	logger.Info("connected to ocr server", "endpoint", opts.Endpoint)

	return &Client{conn: conn, opts: opts, timeout: timeout, logger: logger}, nil
}

// Recognize sends every image as its own request and collects the results
// in input order.
func (c *Client) Recognize(ctx context.Context, images []imageio.Image, stages engine.FlatStages) ([][]result.Recognition, error) {
	out := make([][]result.Recognition, 0, len(images))
	for _, img := range images {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		req, err := c.request(TypeImage, img, c.flatOptions(stages))
		if err != nil {
			return nil, err
		}
		var res ImageResult
		if err := c.roundTrip(ctx, req, &res); err != nil {
			return nil, fmt.Errorf("recognize %s: %w", img.Path, err)
		}
		regions := make([]result.Recognition, 0, len(res.Regions))
		for _, r := range res.Regions {
			regions = append(regions, r.toRecognition(stages.Recognize, stages.Classify))
		}
		out = append(out, regions)
	}
	return out, nil
}

// Structure sends one structure request.
func (c *Client) Structure(ctx context.Context, img imageio.Image, stages engine.StructureStages) ([]result.Structure, error) {
	req, err := c.request(TypeStructure, img, c.structureOptions(stages))
	if err != nil {
		return nil, err
	}
	var res StructureResult
	if err := c.roundTrip(ctx, req, &res); err != nil {
		return nil, fmt.Errorf("structure %s: %w", img.Path, err)
	}
	out := make([]result.Structure, 0, len(res.Regions))
	for _, r := range res.Regions {
		out = append(out, r.toStructure())
	}
	return out, nil
}

// Close sends a close frame and closes the connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	return c.conn.Close()
}

func (c *Client) request(typ string, img imageio.Image, options map[string]interface{}) (Request, error) {
	data, err := imageio.EncodePNG(img.Img)
	if err != nil {
		return Request{}, fmt.Errorf("encode %s: %w", img.Path, err)
	}
	return Request{Type: typ, Image: data, Filename: filepath.Base(img.Path), Options: options}, nil
}

func (c *Client) commonOptions() map[string]interface{} {
	o := map[string]interface{}{
		"precision": c.opts.Precision,
		"use_gpu":   c.opts.UseGPU,
		"gpu_id":    c.opts.GPUDevice,
	}
	if c.opts.Language != "" {
		o["language"] = c.opts.Language
	}
	for key, dir := range map[string]string{
		"det-model":    c.opts.Models.Det,
		"rec-model":    c.opts.Models.Rec,
		"cls-model":    c.opts.Models.Cls,
		"layout-model": c.opts.Models.Layout,
		"table-model":  c.opts.Models.Table,
	} {
		if dir != "" {
			o[key] = dir
		}
	}
	return o
}

func (c *Client) flatOptions(s engine.FlatStages) map[string]interface{} {
	o := c.commonOptions()
	o["det"] = s.Detect
	o["rec"] = s.Recognize
	o["cls"] = s.Classify
	o["use_angle_cls"] = c.opts.UseAngleCls
	return o
}

func (c *Client) structureOptions(s engine.StructureStages) map[string]interface{} {
	o := c.commonOptions()
	o["layout"] = s.Layout
	o["table"] = s.Table
	o["ocr"] = s.OCR
	return o
}

// roundTrip writes req and reads frames until a completed or error frame
// arrives, decoding the completed payload into out.
func (c *Client) roundTrip(ctx context.Context, req Request, out interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := c.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	if err := c.conn.WriteJSON(req); err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	if err := c.conn.SetReadDeadline(deadline); err != nil {
		return err
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read response: %w", err)
		}
		var frame Response[json.RawMessage]
		if err := json.Unmarshal(data, &frame); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		switch frame.Status {
		case StatusProcessing:
			c.logger.Debug("ocr server progress", "request_id", frame.RequestID, "progress", frame.Progress)
		case StatusError:
			return &ServerError{Type: frame.ErrorType, Message: frame.Error}
		case StatusCompleted:
			if frame.Result == nil {
				return errors.New("completed response without result")
			}
			if err := json.Unmarshal(*frame.Result, out); err != nil {
				return fmt.Errorf("decode result: %w", err)
			}
			return nil
		default:
			return fmt.Errorf("unexpected response status %q", frame.Status)
		}
	}
}
