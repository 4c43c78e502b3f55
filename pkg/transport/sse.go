package transport

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"strings"

	"github.com/rhuss/schach/pkg/api"
	"github.com/rhuss/schach/pkg/debug"
)

const maxSSELine = 1 << 20

// readStream accumulates an SSE body. Only "data:" lines are considered;
// the stream ends at "[DONE]", at a codec Done delta, or at EOF. Malformed
// chunks are logged and skipped.
func readStream(ctx context.Context, body io.Reader, codec Codec, onUpdate UpdateFunc) (api.CanonicalResponse, error) {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxSSELine)

	var text, reasoning strings.Builder
	snapshot := func() api.CanonicalResponse {
		return api.CanonicalResponse{Text: text.String(), Reasoning: reasoning.String()}
	}

	fragments := 0
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return snapshot(), api.NewCancelledError(err)
		}

		payload, ok := strings.CutPrefix(scanner.Text(), "data:")
		if !ok {
			continue
		}
		payload = strings.TrimSpace(payload)
		if payload == "" {
			continue
		}
		if payload == "[DONE]" {
			break
		}

		delta, err := codec.DecodeStreamEvent([]byte(payload))
		if err != nil {
			if api.KindOf(err) == api.KindMalformedResponse {
				slog.Warn("skipping malformed SSE chunk",
					"error", err.Error(),
					"data", debug.Truncate(payload, 200),
				)
				continue
			}
			return snapshot(), classifyDecodeError(err, 200, []byte(payload))
		}

		if !delta.Empty() {
			text.WriteString(delta.Text)
			reasoning.WriteString(delta.Reasoning)
			fragments++
			if onUpdate != nil {
				onUpdate(snapshot())
			}
		}
		if delta.Done {
			break
		}
	}

	if err := scanner.Err(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return snapshot(), api.NewCancelledError(ctxErr)
		}
		return snapshot(), api.NewUpstreamError(0, "stream interrupted: "+err.Error(), err)
	}
	if err := ctx.Err(); err != nil {
		return snapshot(), api.NewCancelledError(err)
	}

	debug.Log("transport", "stream complete", "fragments", fragments, "text_len", text.Len())

	out := snapshot()
	if strings.TrimSpace(out.Text) == "" && strings.TrimSpace(out.Reasoning) == "" {
		return out, api.NewMalformedResponseError("stream ended without content", nil)
	}
	return out, nil
}
