package main

import (
	"context"
)

// discardSink drops every payload; one-shot commands never deliver.
type discardSink struct{}

func (discardSink) Post(context.Context, string, any) error { return nil }
