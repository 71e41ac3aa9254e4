package fetch

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	u "net/url"
	"path"
	"strconv"
	"time"

	"github.com/0xb0rn3/fastdl/internal/utils"
)

// ResourceMetadata is what a probe learns about a remote resource. A Size
// of 0 means the server didn't report one and the resource must be
// streamed.
type ResourceMetadata struct {
	Size         int64
	AcceptRanges bool
	Filename     string
}

type Prober struct {
	client    *http.Client
	userAgent string
}

func NewProber(client *http.Client, userAgent string) *Prober {
	return &Prober{client: client, userAgent: userAgent}
}

// Probe issues a HEAD request (redirects followed) and always returns
// usable metadata: any transport failure degrades to size 0 with no range
// support, which routes the transfer down the stream path.
func (p *Prober) Probe(ctx context.Context, rawURL string) ResourceMetadata {
	log := utils.GetLogger("probe")
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		log.Warn().Err(err).Str("url", rawURL).Msg("Invalid probe request, degrading to stream transfer")
		return ResourceMetadata{Filename: resolveFilename(rawURL, nil)}
	}
	req.Header.Set("User-Agent", p.userAgent)
	resp, err := p.client.Do(req)
	if err != nil {
		log.Warn().Err(err).Str("url", rawURL).Msg("Probe failed, degrading to stream transfer")
		return ResourceMetadata{Filename: resolveFilename(rawURL, nil)}
	}
	defer resp.Body.Close()

	meta := ResourceMetadata{
		AcceptRanges: resp.Header.Get("Accept-Ranges") == "bytes",
		Filename:     resolveFilename(rawURL, resp.Header),
	}
	if contentLength := resp.Header.Get("Content-Length"); contentLength != "" {
		if size, err := strconv.ParseInt(contentLength, 10, 64); err == nil && size > 0 {
			meta.Size = size
		}
	}
	log.Debug().Str("url", rawURL).Int64("size", meta.Size).Bool("ranges", meta.AcceptRanges).Str("filename", meta.Filename).Msg("Probe complete")
	return meta
}

// resolveFilename picks a name from the Content-Disposition header, then
// the URL path, then a timestamp-derived fallback. Values are
// percent-decoded.
func resolveFilename(rawURL string, header http.Header) string {
	if header != nil {
		if contentDisposition := header.Get("Content-Disposition"); contentDisposition != "" {
			if _, params, err := mime.ParseMediaType(contentDisposition); err == nil {
				// mime.ParseMediaType already folds RFC 2231 filename*
				// parameters into the plain filename key
				if fn, ok := params["filename"]; ok && fn != "" {
					if unescaped, err := u.PathUnescape(fn); err == nil {
						return unescaped
					}
					return fn
				}
			}
		}
	}
	if parsed, err := u.Parse(rawURL); err == nil {
		if name := path.Base(parsed.Path); name != "" && name != "." && name != "/" {
			if unescaped, err := u.PathUnescape(name); err == nil {
				return unescaped
			}
			return name
		}
	}
	return fmt.Sprintf("download_%d", time.Now().Unix())
}
