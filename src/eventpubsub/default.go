package eventpubsub

import (
	"github.com/asaskevich/EventBus"
	log "github.com/sirupsen/logrus"
)

var bus EventBus.Bus

func Init() {
	bus = EventBus.New()
}

// Publish is a no-op until Init has been called, so library code can emit
// events without caring whether a subscriber side exists.
func Publish(topic string, event interface{}) {
	if bus == nil {
		return
	}

	bus.Publish(topic, event)
}

func Subscribe(topic string, callbackFn interface{}) error {
	if bus == nil {
		Init()
	}

	if err := bus.SubscribeAsync(topic, callbackFn, false); err != nil {
		return err
	}

	log.Infof("Subscribed to topic %s", topic)
	return nil
}

// SubscribeSync delivers events on the publisher's goroutine, which keeps
// progress output ordered with the work that produced it.
func SubscribeSync(topic string, callbackFn interface{}) error {
	if bus == nil {
		Init()
	}

	if err := bus.Subscribe(topic, callbackFn); err != nil {
		return err
	}

	log.Infof("Subscribed to topic %s", topic)
	return nil
}
