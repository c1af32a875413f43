package engine

// A FormatError reports that the input is not a valid PNG.
type FormatError string

func (e FormatError) Error() string { return "png: invalid format: " + string(e) }

var errChunkOrder = FormatError("chunk out of order")

// An UnsupportedError reports a valid but unsupported PNG feature or an
// output request the decoder cannot satisfy.
type UnsupportedError string

func (e UnsupportedError) Error() string { return "png: unsupported feature: " + string(e) }
