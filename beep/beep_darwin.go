//go:build darwin

package beep

import (
	"sync"
	"sync/atomic"

	"github.com/gen2brain/malgo"

	"murmur/log"
)

var (
	initOnce sync.Once
	mctx     *malgo.AllocatedContext
	device   *malgo.Device

	// read by the device callback
	current atomic.Pointer[[]byte]
	pos     atomic.Uint32
	mu      sync.Mutex
)

func initDevice() error {
	cfg := malgo.DefaultDeviceConfig(malgo.Playback)
	cfg.Playback.Format = malgo.FormatS16
	cfg.Playback.Channels = 1
	cfg.SampleRate = sampleRate

	var err error
	device, err = malgo.InitDevice(mctx.Context, cfg, malgo.DeviceCallbacks{Data: fill})
	return err
}

func initAudio() {
	var err error
	mctx, err = malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		log.Warnf("malgo context: %v", err)
		return
	}
	if err := initDevice(); err != nil {
		log.Warnf("malgo device: %v", err)
		mctx.Uninit()
		mctx = nil
	}
}

func fill(out, _ []byte, frames uint32) {
	clear(out)
	p := current.Load()
	if p == nil {
		return
	}
	buf := *p
	at := pos.Load()
	if at >= uint32(len(buf)) {
		current.Store(nil)
		return
	}
	n := uint32(copy(out[:frames*2], buf[at:]))
	pos.Store(at + n)
}

func encode(samples []int16) []byte {
	b := make([]byte, len(samples)*2)
	for i, s := range samples {
		b[i*2] = byte(s)
		b[i*2+1] = byte(s >> 8)
	}
	return b
}

func play(c Cue) {
	initOnce.Do(initAudio)
	if mctx == nil {
		return
	}
	buf := encode(pcm(c, sampleRate, 0))

	mu.Lock()
	defer mu.Unlock()
	device.Stop()
	pos.Store(0)
	current.Store(&buf)
	if err := device.Start(); err != nil {
		// the device goes stale across sleep and wake
		device.Uninit()
		if err := initDevice(); err != nil {
			current.Store(nil)
			return
		}
		if err := device.Start(); err != nil {
			current.Store(nil)
		}
	}
}
