package master

import (
	"context"
	"net"
	"reflect"
	"time"

	"netcosm/internal/ipc"
	"netcosm/internal/worldmod"
)

// Serve is the master's single dispatch goroutine: a readiness loop over
// the listen socket, every worker's inbound channel, an optional
// simulation tick, and ctx cancellation. net.Listener.Accept is itself a
// blocking call, so a dedicated accept goroutine feeds newConns instead,
// the one concession Go's channel-based select requires to keep this loop
// itself non-blocking.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	go s.acceptLoop(ctx, ln)

	var simTickFn func(worldmod.Driver)
	if tick, period, ok := s.module.Simulation(); ok {
		simTickFn = tick
		go s.simLoop(ctx, period)
	}

	const fixedCases = 4 // ctx.Done, newConns, disconnect, simTick

	for {
		ids := make([]ipc.ClientID, 0, len(s.readers))
		cases := make([]reflect.SelectCase, 0, fixedCases+len(s.readers))
		cases = append(cases,
			reflect.SelectCase{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(ctx.Done())},
			reflect.SelectCase{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(s.newConns)},
			reflect.SelectCase{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(s.disconnect)},
			reflect.SelectCase{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(s.simTick)},
		)
		for id, ch := range s.readers {
			ids = append(ids, id)
			cases = append(cases, reflect.SelectCase{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(ch)})
		}

		chosen, recv, recvOK := reflect.Select(cases)

		switch chosen {
		case 0: // ctx.Done()
			s.shutdownSessions()
			return nil
		case 1: // newConns
			if recvOK {
				s.acceptConn(recv.Interface().(net.Conn))
			}
		case 2: // disconnect
			if recvOK {
				s.removeConn(recv.Interface().(ipc.ClientID))
			}
		case 3: // simTick
			if recvOK && simTickFn != nil {
				simTickFn(driver{s: s})
			}
		default:
			if !recvOK {
				continue
			}
			id := ids[chosen-fixedCases]
			pkt := recv.Interface().(ipc.Packet)
			pkt.SenderID = id
			s.dispatch(pkt)
		}
	}
}

func (s *Server) acceptLoop(ctx context.Context, ln net.Listener) {
	go func() {
		<-ctx.Done()
		ln.Close()
	}()
	for {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		select {
		case <-ctx.Done():
			conn.Close()
			return
		default:
		}
		s.Accept(conn)
	}
}

func (s *Server) simLoop(ctx context.Context, period time.Duration) {
	if period <= 0 {
		return
	}
	t := time.NewTicker(period)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			select {
			case s.simTick <- struct{}{}:
			default:
			}
		}
	}
}
