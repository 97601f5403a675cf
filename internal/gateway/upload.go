package gateway

import (
	"io"
	"mime/multipart"
)

// uploadField is the multipart field name the backend reads the archive from.
const uploadField = "project"

// multipartBody streams r as a multipart form through a pipe so large archives
// are never buffered in memory. Closing the returned reader aborts the writer.
func multipartBody(fileName string, r io.Reader, size int64, progress ProgressFunc) (io.ReadCloser, string) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		part, err := mw.CreateFormFile(uploadField, fileName)
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		src := &progressReader{r: r, total: size, fn: progress}
		if size <= 0 {
			src.total = -1
		}
		if _, err := io.Copy(part, src); err != nil {
			pw.CloseWithError(err)
			return
		}
		pw.CloseWithError(mw.Close())
	}()

	return pr, mw.FormDataContentType()
}

// progressReader reports the number of archive bytes handed to the transport.
// This is real transfer progress, unlike the cosmetic estimate some
// front-ends animate while waiting.
type progressReader struct {
	r     io.Reader
	sent  int64
	total int64
	fn    ProgressFunc
}

func (p *progressReader) Read(buf []byte) (int, error) {
	n, err := p.r.Read(buf)
	if n > 0 {
		p.sent += int64(n)
		if p.fn != nil {
			p.fn(p.sent, p.total)
		}
	}
	return n, err
}
