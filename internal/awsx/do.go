// Package awsx contains helpers for the AWS SDK.
package awsx

import "context"

// Do executes an AWS API request.
//
// dec is a decorator function that mutates the request before it is sent,
// returning any additional options for the request.
func Do[In, Out, Opt any](
	ctx context.Context,
	fn func(context.Context, *In, ...func(*Opt)) (Out, error),
	dec func(*In) []func(*Opt),
	in *In,
	options ...func(*Opt),
) (out Out, err error) {
	if dec != nil {
		options = append(options, dec(in)...)
	}

	return fn(ctx, in, options...)
}
