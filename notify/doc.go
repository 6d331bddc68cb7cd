// Package notify delivers pipe data-available events to interested parties.
//
// Every notifier here implements pipe.Notifier and is called with a pipe's
// gate held, so none of them block: Channels drops events for slow
// subscribers, and NATS hands events to a worker pool before any network
// I/O happens. Multi fans one event out to several notifiers.
//
//	ch := notify.NewChannels(16)
//	p, _ := pipe.New("scullpipe0", pipe.WithNotifier(ch))
//	h, _ := p.Open(ctx, pipe.ModeRead)
//	events := ch.Subscribe(h.ID())
//	_ = h.SetAsync(true)
//	for ev := range events { ... } // closed when h closes or disables async
package notify
