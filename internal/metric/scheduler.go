package metric

// TaskStatus 调度任务状态
type TaskStatus struct {
	Name        string `json:"name"`
	Interval    string `json:"interval"`
	NextRunTime string `json:"nextRunTime,omitempty"`
	PrevRunTime string `json:"prevRunTime,omitempty"`
}

// SchedulerStatus 指标调度器状态
type SchedulerStatus struct {
	Running   bool         `json:"running"`
	Retention string       `json:"retention"`
	Tasks     []TaskStatus `json:"tasks"`
}
