package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/eagraf/kitsune-hub/internal/utils"
	"gopkg.in/yaml.v3"
)

const (
	outputJSON = "json"
	outputYAML = "yaml"
)

// client talks to a running kitsunehub and prints decoded responses.
type client struct {
	base   string
	output string
	http   *http.Client
	out    io.Writer
}

func newClient(base, output string, out io.Writer) (*client, error) {
	if output != outputJSON && output != outputYAML {
		return nil, fmt.Errorf("unknown output format %q", output)
	}
	return &client{
		base:   strings.TrimSuffix(base, "/"),
		output: output,
		http:   http.DefaultClient,
		out:    out,
	}, nil
}

func (c *client) get(ctx context.Context, path string, query url.Values) error {
	target := c.base + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}
	return c.do(req)
}

func (c *client) post(ctx context.Context, path string, body any) error {
	var reader io.Reader = http.NoBody
	if body != nil {
		marshalled, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(marshalled)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

func (c *client) do(req *http.Request) error {
	res, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer utils.Close(res.Body, utils.WarnOnError("response body"))

	slurp, err := io.ReadAll(res.Body)
	if err != nil {
		return err
	}
	if res.StatusCode >= http.StatusBadRequest {
		var msg utils.ErrorMessage
		if json.Unmarshal(slurp, &msg) == nil && msg.Error != "" {
			return fmt.Errorf("%s: %s", res.Status, msg.Error)
		}
		return fmt.Errorf("%s: %s", res.Status, strings.TrimSpace(string(slurp)))
	}
	return c.print(slurp)
}

func (c *client) print(raw []byte) error {
	var body any
	err := json.Unmarshal(raw, &body)
	if err != nil {
		return err
	}

	var formatted []byte
	switch c.output {
	case outputYAML:
		formatted, err = yaml.Marshal(body)
	default:
		formatted, err = json.MarshalIndent(body, "", "  ")
		formatted = append(formatted, '\n')
	}
	if err != nil {
		return err
	}
	_, err = c.out.Write(formatted)
	return err
}
