package tasks

import (
	"bytes"

	"github.com/tdewolff/minify/v2"
	minjs "github.com/tdewolff/minify/v2/js"
)

func minifyJS(data []byte) ([]byte, error) {
	m := minify.New()
	m.AddFunc("application/javascript", minjs.Minify)
	var buf bytes.Buffer
	if err := m.Minify("application/javascript", &buf, bytes.NewReader(data)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
