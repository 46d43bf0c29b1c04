package logging

// Standardized structured logging keys.
const (
	// FieldComponent names the subsystem emitting the record.
	FieldComponent = "component"
	// FieldWebhookID identifies the webhook whose pipeline is running.
	FieldWebhookID = "webhook_id"
	// FieldJob names the pipeline job within a webhook.
	FieldJob = "job"
	// FieldQueue names the broker queue a record relates to.
	FieldQueue = "queue"
	// FieldDeliveryTag carries the broker delivery tag of a message.
	FieldDeliveryTag = "delivery_tag"
	// FieldCorrelationID carries the per-message correlation identifier.
	FieldCorrelationID = "correlation_id"
	// FieldItemID carries the media server item identifier.
	FieldItemID = "item_id"
)
