package main

import (
	"fmt"
	"runtime"
)

// The kernel ties a tracer to one OS thread: every ptrace request after
// PTRACE_ATTACH must come from the thread that attached. All ptrace calls
// are funneled through a single goroutine locked to its thread.

type threadResp struct {
	v   any
	err error
}

type threadReq struct {
	run  func() (any, error)
	resp chan threadResp
}

type ptraceThread struct {
	req  chan threadReq
	done chan struct{}
}

func newPtraceThread() *ptraceThread {
	pt := &ptraceThread{
		req:  make(chan threadReq),
		done: make(chan struct{}),
	}

	go func() {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		defer close(pt.done)

		for q := range pt.req {
			var out any
			var err error
			func() {
				defer func() {
					if x := recover(); x != nil {
						err = fmt.Errorf("%v", x)
					}
				}()
				out, err = q.run()
			}()
			q.resp <- threadResp{out, err}
			close(q.resp)
		}
	}()

	return pt
}

func (pt *ptraceThread) stop() {
	close(pt.req)
	<-pt.done
}

func onThread[T any](pt *ptraceThread, fn func() (T, error)) (T, error) {
	resp := make(chan threadResp, 1)
	pt.req <- threadReq{
		run:  func() (any, error) { v, err := fn(); return v, err },
		resp: resp,
	}
	r := <-resp
	if r.err != nil {
		var zero T
		return zero, r.err
	}
	return r.v.(T), nil
}

func onThreadErr(pt *ptraceThread, fn func() error) error {
	_, err := onThread[struct{}](pt, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}
