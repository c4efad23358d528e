package retry

// Topic names for the lettered stage transitions. Consumed by the external
// queue layer; immutable process-wide.
const (
	TopicStageAOpportunity = "pipeline.stage_a.opportunity"
	TopicStageBSelection   = "pipeline.stage_b.selection"
	TopicStageCAuction     = "pipeline.stage_c.auction"
	TopicStageDDelivery    = "pipeline.stage_d.delivery"
	TopicStageERender      = "pipeline.stage_e.render"
	TopicStageFArchive     = "pipeline.stage_f.archive"
	TopicStageGBilling     = "pipeline.stage_g.billing"
	TopicStageHConfig      = "pipeline.stage_h.config"
	TopicReplayJobs        = "pipeline.replay.jobs"
	TopicDeadLetter        = "pipeline.dead_letter"
)

// Consumer group identifiers per stage worker fleet.
const (
	GroupStageWorkers   = "pipeline-stage-workers"
	GroupReplayWorkers  = "pipeline-replay-workers"
	GroupReconcileBatch = "pipeline-reconcile-batch"
)
