package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
)

func statusCmd(args []string) {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "worldgen base url")
	_ = fs.Parse(args)

	body, err := adminRequest(http.MethodGet, *baseURL, "/v1/status", nil)
	if err != nil {
		fmt.Fprintln(os.Stderr, "status:", err)
		os.Exit(1)
	}
	os.Stdout.Write(body)
}

// buildCmd asks a running worldgen to build a region, or to move the
// streaming viewer when -viewer is set.
func buildCmd(args []string) {
	fs := flag.NewFlagSet("build", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "worldgen base url")
	regionArg := fs.String("region", "", "landblock x,y")
	landingArg := fs.String("landing", "", "landing tile x,y inside the region (optional)")
	viewerArg := fs.String("viewer", "", "move the viewer to tile x,y inside the region instead of building")
	radius := fs.Int("radius", 0, "viewer load radius override")
	_ = fs.Parse(args)

	rx, ry, err := parsePair(*regionArg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "bad -region:", err)
		os.Exit(2)
	}

	var (
		path    string
		payload map[string]any
	)
	if strings.TrimSpace(*viewerArg) != "" {
		tx, ty, err := parsePair(*viewerArg)
		if err != nil {
			fmt.Fprintln(os.Stderr, "bad -viewer:", err)
			os.Exit(2)
		}
		path = "/admin/v1/viewer"
		payload = map[string]any{"region": [2]int{rx, ry}, "tile": [2]int{tx, ty}}
		if *radius > 0 {
			payload["radius"] = *radius
		}
	} else {
		path = "/admin/v1/regions"
		payload = map[string]any{"region": [2]int{rx, ry}}
		if strings.TrimSpace(*landingArg) != "" {
			lx, ly, err := parsePair(*landingArg)
			if err != nil {
				fmt.Fprintln(os.Stderr, "bad -landing:", err)
				os.Exit(2)
			}
			payload["landing"] = [2]int{lx, ly}
		}
	}

	buf, _ := json.Marshal(payload)
	body, err := adminRequest(http.MethodPost, *baseURL, path, buf)
	if err != nil {
		fmt.Fprintln(os.Stderr, "build:", err)
		os.Exit(1)
	}
	os.Stdout.Write(body)
}

func adminRequest(method, baseURL, path string, payload []byte) ([]byte, error) {
	var rd io.Reader
	if payload != nil {
		rd = bytes.NewReader(payload)
	}
	req, err := http.NewRequest(method, strings.TrimRight(baseURL, "/")+path, rd)
	if err != nil {
		return nil, err
	}
	if payload != nil {
		req.Header.Set("content-type", "application/json")
	}
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%s %s: status=%d body=%s", method, path, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}

func parsePair(s string) (int, int, error) {
	parts := strings.Split(strings.TrimSpace(s), ",")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("want x,y got %q", s)
	}
	x, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, err
	}
	y, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, 0, err
	}
	return x, y, nil
}
