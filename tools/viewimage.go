package tools

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/zolt-run/zolt/imaging"
)

type viewImageInput struct {
	Path string `json:"path"`
}

const viewImageVisionSizeCap = 6 * 1024 * 1024

func (r *Registry) viewImage(payload string) string {
	header := resultHeader(ViewImage)
	trimmed := strings.TrimSpace(payload)
	in, err := parseInput[viewImageInput](json.RawMessage(trimmed))
	if err != nil || (in.Path == "" && !strings.HasPrefix(trimmed, "{")) {
		in = viewImageInput{Path: trimmed}
	}
	if in.Path == "" {
		return header + "error: path is required\n"
	}

	absPath, err := ValidatePath(r.WorkDir, in.Path)
	if err != nil {
		return header + "error: " + err.Error() + "\n"
	}

	info, err := imaging.Inspect(absPath, true)
	if err != nil {
		return header + "error: " + err.Error() + "\n"
	}

	var sb strings.Builder
	sb.WriteString(header)
	fmt.Fprintf(&sb, "format: %s\n", info.Format)
	fmt.Fprintf(&sb, "mime: %s\n", info.Mime)
	fmt.Fprintf(&sb, "width: %d\n", info.Width)
	fmt.Fprintf(&sb, "height: %d\n", info.Height)
	fmt.Fprintf(&sb, "bytes: %d\n", info.Bytes)
	fmt.Fprintf(&sb, "sha256: %s\n", info.SHA256)

	if r.Vision != nil && info.Bytes <= viewImageVisionSizeCap {
		if caption, err := r.captionImage(absPath, info.Mime); err == nil && caption != "" {
			sb.WriteString("caption:\n")
			sb.WriteString(caption)
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

// captionImage tries each model candidate in order, returning the first
// successful vision caption.
func (r *Registry) captionImage(path, mime string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	dataURL := fmt.Sprintf("data:%s;base64,%s", mime, base64.StdEncoding.EncodeToString(data))

	candidates := r.Vision.ModelCandidates
	if env := os.Getenv("VISION_MODEL"); env != "" {
		candidates = append([]string{env}, candidates...)
	}

	var lastErr error
	for _, model := range candidates {
		caption, err := r.requestCaption(model, dataURL)
		if err == nil {
			return caption, nil
		}
		lastErr = err
	}
	return "", lastErr
}

type visionRequest struct {
	Model    string          `json:"model"`
	Messages []visionMessage `json:"messages"`
}

type visionMessage struct {
	Role    string              `json:"role"`
	Content []visionContentPart `json:"content"`
}

type visionContentPart struct {
	Type     string          `json:"type"`
	Text     string          `json:"text,omitempty"`
	ImageURL *visionImageURL `json:"image_url,omitempty"`
}

type visionImageURL struct {
	URL string `json:"url"`
}

type visionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (r *Registry) requestCaption(model, dataURL string) (string, error) {
	body := visionRequest{
		Model: model,
		Messages: []visionMessage{{
			Role: "user",
			Content: []visionContentPart{
				{Type: "text", Text: "Describe this image concisely."},
				{Type: "image_url", ImageURL: &visionImageURL{URL: dataURL}},
			},
		}},
	}
	data, err := json.Marshal(body)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequest(http.MethodPost, r.Vision.BaseURL+"/chat/completions", bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+r.Vision.APIKey)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("vision request failed: status %d", resp.StatusCode)
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	var parsed visionResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", err
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("no caption returned")
	}
	return parsed.Choices[0].Message.Content, nil
}
