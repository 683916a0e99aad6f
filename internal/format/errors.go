package format

import "errors"

var (
	errInvalidCategory  = errors.New("format: entry has unrecognized category")
	errJumpNotContiguous = errors.New("format: jump-category entries are not contiguous at catalog tail")
	errInvalidWordCount  = errors.New("format: entry encodes to neither 1, 2, nor 3 words")
)
