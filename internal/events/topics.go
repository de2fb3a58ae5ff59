package events

// Topics emitted by the sale service.
const (
	TopicSaleFinalized    = "sale.finalized"
	TopicSaleAborted      = "sale.aborted"
	TopicTradeInRequested = "sale.trade_in_requested"
)

// DefaultQueue is the asynq queue event tasks are enqueued on.
const DefaultQueue = "events"

const (
	taskTypePrefix  = "event:"
	defaultMaxRetry = 8
)

// DefaultTopics returns every topic the worker subscribes to.
func DefaultTopics() []string {
	return []string{
		TopicSaleFinalized,
		TopicSaleAborted,
		TopicTradeInRequested,
	}
}

// TaskType maps a topic to its asynq task type.
func TaskType(topic string) string {
	return taskTypePrefix + topic
}
