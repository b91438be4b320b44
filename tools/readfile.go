package tools

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

type readFileInput struct {
	Path     string `json:"path"`
	MaxBytes int    `json:"max_bytes"`
}

const readFileDefaultMax = 12288
const readFileMaxCap = 262144

func parseReadFilePayload(payload string) readFileInput {
	trimmed := strings.TrimSpace(payload)
	in, err := parseInput[readFileInput](json.RawMessage(trimmed))
	if err != nil || (in.Path == "" && !strings.HasPrefix(trimmed, "{")) {
		in = readFileInput{Path: trimmed}
	}
	if in.MaxBytes <= 0 {
		in.MaxBytes = readFileDefaultMax
	}
	if in.MaxBytes > readFileMaxCap {
		in.MaxBytes = readFileMaxCap
	}
	return in
}

// looksBinary reports whether the sample appears to be binary content: a
// NUL byte, or more than 10% control bytes (excluding tab/newline/CR).
func looksBinary(sample []byte) bool {
	if bytes.IndexByte(sample, 0) != -1 {
		return true
	}
	if len(sample) == 0 {
		return false
	}
	control := 0
	for _, b := range sample {
		if b < 0x20 && b != '\t' && b != '\n' && b != '\r' {
			control++
		}
	}
	return float64(control)/float64(len(sample)) > 0.10
}

func (r *Registry) readFile(payload string) string {
	header := resultHeader(ReadFile)
	in := parseReadFilePayload(payload)
	if in.Path == "" {
		return header + "error: path is required\n"
	}

	absPath, err := ValidatePath(r.WorkDir, in.Path)
	if err != nil {
		return header + "error: " + err.Error() + "\n"
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return header + "error: " + err.Error() + "\n"
	}
	if info.IsDir() {
		return header + "error: is a directory\n"
	}

	f, err := os.Open(absPath)
	if err != nil {
		return header + "error: " + err.Error() + "\n"
	}
	defer f.Close()

	sampleSize := 1024
	if int(info.Size()) < sampleSize {
		sampleSize = int(info.Size())
	}
	sample := make([]byte, sampleSize)
	n, _ := f.Read(sample)
	if looksBinary(sample[:n]) {
		return header + "error: binary file\n"
	}
	if _, err := f.Seek(0, 0); err != nil {
		return header + "error: " + err.Error() + "\n"
	}

	buf := make([]byte, in.MaxBytes)
	read, err := f.Read(buf)
	if err != nil && read == 0 {
		return header + "error: " + err.Error() + "\n"
	}

	var sb strings.Builder
	sb.WriteString(header)
	fmt.Fprintf(&sb, "path: %s\n", in.Path)
	fmt.Fprintf(&sb, "bytes: %d-%d of %d\n", 0, read, info.Size())
	if int64(read) < info.Size() {
		sb.WriteString("note: output truncated by limit\n")
	}
	sb.WriteString("---\n")
	sb.Write(buf[:read])
	sb.WriteString("\n")
	return sb.String()
}
