// Load-test bot: connects a swarm of simulated players that wander, jump
// and shoot, exercising the server's tick loop and broadcast path under
// realistic message rates.
package main

import (
	"flag"
	"math"
	"math/rand"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"

	server "freerun/server"
	"freerun/server/internal/client"
	"freerun/server/internal/logging"
	"freerun/server/internal/phys"
	"freerun/server/internal/sim"
)

func main() {
	var (
		url      = flag.String("url", "ws://127.0.0.1:8080/ws", "server websocket endpoint")
		count    = flag.Int("n", 8, "number of bots")
		rate     = flag.Int("rate", 30, "input messages per second per bot")
		fireOdds = flag.Float64("fire", 0.05, "chance per frame a bot holds fire")
		debug    = flag.Bool("debug", false, "enable debug logging")
	)
	flag.Parse()

	logger := logging.New("", *debug)
	defer logger.Sync()

	stop := make(chan struct{})
	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		<-sig
		close(stop)
	}()

	world, _ := server.DefaultArena()

	var wg sync.WaitGroup
	for i := 0; i < *count; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			runBot(n, *url, world, *rate, float32(*fireOdds), logger, stop)
		}(i)
		// Stagger dials so the server does not see a connect burst.
		time.Sleep(50 * time.Millisecond)
	}
	wg.Wait()
}

func runBot(n int, url string, world []*phys.Collider, rate int, fireOdds float32, logger *zap.Logger, stop <-chan struct{}) {
	log := logger.With(zap.Int("bot", n))
	c, err := client.Dial(url, world, log)
	if err != nil {
		log.Error("dial failed", zap.Error(err))
		return
	}
	defer c.Close()

	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(n)))
	interval := time.Second / time.Duration(rate)
	frame := time.NewTicker(interval)
	defer frame.Stop()
	heartbeat := time.NewTicker(time.Second)
	defer heartbeat.Stop()
	report := time.NewTicker(250 * time.Millisecond)
	defer report.Stop()

	heading := rng.Float64() * 2 * math.Pi
	var in sim.Input
	last := time.Now()

	for {
		select {
		case <-stop:
			return
		case <-c.Done():
			log.Info("disconnected")
			return
		case <-heartbeat.C:
			if err := c.SendHeartbeat(); err != nil {
				return
			}
		case <-report.C:
			if c.Session().Ready() {
				if err := c.ReportState(); err != nil {
					return
				}
			}
		case now := <-frame.C:
			dt := float32(now.Sub(last).Seconds())
			last = now

			// Wander: drift the heading, occasionally jump or shoot.
			heading += (rng.Float64() - 0.5) * 0.4
			dir := mgl32.Vec3{float32(math.Sin(heading)), 0, float32(math.Cos(heading))}
			in.Direction = dir
			in.Look = dir
			in.Sprint = true
			in.Jump = rng.Float32() < 0.02
			in.Fire = rng.Float32() < fireOdds

			c.Poll(dt)
			if c.Session().Ready() {
				c.Session().Frame(dt, in)
			}
			if err := c.SendInput(in, [3]float32{dir.X(), 0, dir.Z()}); err != nil {
				return
			}
		}
	}
}
