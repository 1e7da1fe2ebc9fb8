package eventpubsub

import (
	log "github.com/sirupsen/logrus"
)

// PublishResult publishes on behalf of a named component so subscribers and
// debug logs can tell event sources apart.
func PublishResult(publisherName string, topic string, event interface{}) {
	log.Debugf("[%v] Published to topic %s", publisherName, topic)

	Publish(topic, event)
}

func PublishError(publisherName string, err error) {
	log.Errorf("[%v] %v", publisherName, err)

	Publish(Error, err)
}
