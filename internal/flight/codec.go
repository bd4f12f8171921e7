package flight

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"net/url"

	"github.com/five82/wayfinder/internal/routerstate"
)

// Request headers understood by the Flight endpoint.
const (
	HeaderRSC             = "RSC"
	HeaderRouterStateTree = "Next-Router-State-Tree"
	HeaderRouterPrefetch  = "Next-Router-Prefetch"
	VaryHeader            = HeaderRSC + ", " + HeaderRouterStateTree + ", " + HeaderRouterPrefetch

	ContentType = "text/x-component"
)

// Encode writes data to w followed by a newline.
func Encode(w io.Writer, data Data) error {
	buf := bufio.NewWriter(w)
	if err := json.NewEncoder(buf).Encode(data); err != nil {
		return fmt.Errorf("encode flight data: %w", err)
	}
	return buf.Flush()
}

// Decode drains r and parses the Flight response it carries.
func Decode(r io.Reader) (Data, error) {
	var data Data
	if err := json.NewDecoder(r).Decode(&data); err != nil {
		return Data{}, fmt.Errorf("decode flight stream: %w", err)
	}
	return data, nil
}

// EncodeTreeHeader serialises a router state tree for the state tree header.
func EncodeTreeHeader(tree *routerstate.Tree) (string, error) {
	if tree == nil {
		return "", nil
	}
	raw, err := json.Marshal(tree)
	if err != nil {
		return "", fmt.Errorf("encode router state: %w", err)
	}
	return url.QueryEscape(string(raw)), nil
}

// DecodeTreeHeader parses the state tree header. An empty header yields nil.
func DecodeTreeHeader(value string) (*routerstate.Tree, error) {
	if value == "" {
		return nil, nil
	}
	unescaped, err := url.QueryUnescape(value)
	if err != nil {
		return nil, fmt.Errorf("unescape router state: %w", err)
	}
	var tree routerstate.Tree
	if err := json.Unmarshal([]byte(unescaped), &tree); err != nil {
		return nil, err
	}
	return &tree, nil
}
