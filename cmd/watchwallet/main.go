// Copyright (c) 2026 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// watchwallet watches one or more contract wallets through a btcd node and
// logs their balance and activity.  It drives the same bridge the C library
// exposes, with in-process completion ports.
package main

import (
	"errors"
	"math"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/walletbridge/bridge"
	"github.com/btcsuite/walletbridge/port"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	// Work around defer not working after os.Exit.
	if err := watchMain(); err != nil {
		os.Exit(1)
	}
}

// watchMain is a work-around main function that is required since deferred
// functions (such as log flushing) are not called with calls to os.Exit.
func watchMain() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	defer logWriter.Close()

	interrupt := newInterruptListener()

	ports := port.NewRegistry()
	var (
		portsMtx  sync.Mutex
		openPorts []*port.Port
	)
	openPort := func() *port.Port {
		p := ports.Open()

		portsMtx.Lock()
		openPorts = append(openPorts, p)
		portsMtx.Unlock()

		return p
	}

	// Handlers run in reverse order: the bridge stops posting before the
	// ports are closed.
	interrupt.addInterruptHandler(func() {
		portsMtx.Lock()
		defer portsMtx.Unlock()

		for _, p := range openPorts {
			p.Close()
		}
	})

	metrics := bridge.NewMetrics("watchwallet")
	b := bridge.New(bridge.Config{
		Sink:    ports,
		Metrics: metrics,
	})
	b.SetForwarding(cfg.forwarding)
	interrupt.addInterruptHandler(b.Close)

	servers := startMetricsServers(cfg.MetricsListeners, metrics)
	interrupt.addInterruptHandler(func() {
		for _, server := range servers {
			if err := server.Close(); err != nil {
				log.Errorf("Unable to stop metrics server: %v",
					err)
			}
		}
	})

	rt, err := b.CreateRuntime(cfg.Workers)
	if err != nil {
		log.Errorf("Unable to create runtime: %v", err)
		b.Close()
		return err
	}
	tr, err := b.CreateTransport(cfg.Transport)
	if err != nil {
		log.Errorf("Unable to create transport: %v", err)
		b.Close()
		return err
	}

	var (
		wg     sync.WaitGroup
		active int
	)
	for _, key := range cfg.PubKeys {
		events := openPort()
		result := openPort()

		err := b.SubscribeToWallet(rt, tr, key, cfg.contract,
			events.Address(), result.Address())
		if err != nil {
			log.Errorf("Unable to watch %s: %v", key, err)
			result.Close()
			events.Close()
			continue
		}

		status, ok := awaitSubscription(result, cfg.SubscribeWait)
		if !ok {
			log.Errorf("No subscription result for %s after %v",
				key, cfg.SubscribeWait)
			go abandonSubscription(b, result, events)
			continue
		}
		result.Close()
		if status.Status != int32(bridge.Ok) {
			log.Errorf("Unable to watch %s: %v", key,
				bridge.StatusCode(status.Status))
			events.Close()
			continue
		}

		log.Infof("Watching %v wallet %s (subscription %d)",
			cfg.contract, key, status.Handle)
		active++

		w := &walletLog{
			key:        key,
			lowBalance: cfg.LowBalance.Amount,
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.run(events.Messages())
		}()
	}
	if active == 0 {
		b.Close()
		return errors.New("no wallet could be watched")
	}

	if cfg.StatusInterval > 0 {
		status := openPort()
		wg.Add(1)
		go func() {
			defer wg.Done()
			reportStatus(b, rt, status, cfg.StatusInterval)
		}()
	}

	<-interrupt.Done()
	wg.Wait()
	log.Info("Shutdown complete")

	return nil
}

// awaitSubscription waits for the result of a subscription request.
func awaitSubscription(result *port.Port,
	timeout time.Duration) (port.SubscriptionResult, bool) {

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case msg := <-result.Messages():
		res, ok := msg.(port.SubscriptionResult)
		return res, ok

	case <-timer.C:
		return port.SubscriptionResult{}, false
	}
}

// subscriptionDeleter deletes live subscriptions.
type subscriptionDeleter interface {
	DeleteSubscription(sub bridge.Handle) error
}

// abandonSubscription waits for the result of a subscription request that
// was given up on.  A subscription created after all is deleted.  Both ports
// are closed on return.
func abandonSubscription(b subscriptionDeleter, result, events *port.Port) {
	defer events.Close()
	defer result.Close()

	msg, ok := <-result.Messages()
	if !ok {
		return
	}
	res, ok := msg.(port.SubscriptionResult)
	if !ok || res.Status != int32(bridge.Ok) {
		return
	}

	log.Infof("Deleting late subscription %d", res.Handle)
	if err := b.DeleteSubscription(bridge.Handle(res.Handle)); err != nil {
		log.Debugf("Unable to delete subscription %d: %v", res.Handle,
			err)
	}
}

// walletLog reports the notifications of one watched wallet.
type walletLog struct {
	key        string
	lowBalance btcutil.Amount

	balance btcutil.Amount
	known   bool
}

func (w *walletLog) run(events <-chan port.Message) {
	for msg := range events {
		switch m := msg.(type) {
		case port.StateChanged:
			w.stateChanged(btcutil.Amount(m.Balance))

		case port.MessageSent:
			if m.Confirmed {
				log.Infof("Wallet %s: transaction %v confirmed "+
					"at height %d", w.key, m.TxID, m.Height)
			} else {
				log.Infof("Wallet %s: transaction %v sent",
					w.key, m.TxID)
			}

		case port.MessageExpired:
			log.Warnf("Wallet %s: transaction %v expired", w.key,
				m.TxID)

		case port.TransactionsFound:
			kind := "new"
			if m.Initial {
				kind = "existing"
			}
			log.Infof("Wallet %s: %d %s transaction(s) between "+
				"heights %d and %d", w.key, len(m.TxIDs), kind,
				m.MinHeight, m.MaxHeight)

		default:
			log.Warnf("Wallet %s: unexpected %v", w.key, msg.Tag())
		}
	}
}

func (w *walletLog) stateChanged(balance btcutil.Amount) {
	if w.known {
		log.Infof("Wallet %s: balance %v (was %v)", w.key, balance,
			w.balance)
	} else {
		log.Infof("Wallet %s: balance %v", w.key, balance)
	}
	w.balance, w.known = balance, true

	if w.lowBalance > 0 && balance < w.lowBalance {
		log.Warnf("Wallet %s: balance %v is below %v", w.key, balance,
			w.lowBalance)
	}
}

// reportStatus logs the live handle counts every interval, timed by the
// bridge runtime.
func reportStatus(b *bridge.Bridge, rt bridge.Handle, status *port.Port,
	interval time.Duration) {

	seconds := uint32(math.MaxUint32)
	if interval < time.Duration(seconds)*time.Second {
		seconds = max(uint32(interval/time.Second), 1)
	}

	for {
		if err := b.Wait(rt, seconds, status.Address()); err != nil {
			log.Debugf("Status reports stopped: %v", err)
			return
		}
		if _, ok := <-status.Messages(); !ok {
			return
		}

		counts := b.Counts()
		log.Infof("%d subscription(s) live, forwarding %v",
			counts.Subscriptions, b.Forwarding())
	}
}

// startMetricsServers serves the bridge metrics on every listener.
func startMetricsServers(listeners []string,
	metrics *bridge.Metrics) []*http.Server {

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(
		metrics.Registry(), promhttp.HandlerOpts{},
	))

	servers := make([]*http.Server, 0, len(listeners))
	for _, addr := range listeners {
		server := &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		}
		servers = append(servers, server)

		go func() {
			log.Infof("Metrics server listening on %s", addr)
			err := server.ListenAndServe()
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Errorf("Metrics server on %s: %v", addr,
					err)
			}
		}()
	}

	return servers
}
