/*
Package stream implements the client side of the run event stream.

It decodes server-sent event frames from a transport, folds each decoded
event into the run's execution state, and keeps that state available as a
snapshot while the subscription is live. Transport loss is handled with
bounded exponential backoff; accumulated state survives reconnects.

# Key Components

  - Decoder: incremental frame decoder tolerant of arbitrary chunking.
  - Client: one live subscription per run id, with reconnection and
    terminal-state guards.
  - RetryPolicy: bounds reconnection attempts and spaces them out.

# Usage

	c := stream.New(opener, confirmer)
	defer c.CloseAll()

	err := c.Open(ctx, runID, stream.WithListener(func(st domain.ExecutionState) {
		render(st)
	}))
	if err != nil {
		return err
	}

	final, err := c.Wait(ctx, runID)
*/
package stream
