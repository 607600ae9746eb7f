package pipeline

import "errors"

// ErrUnsupportedFormat rejects media the pipeline has no route for. The
// user is notified; nothing is stored.
var ErrUnsupportedFormat = errors.New("unsupported media format")
