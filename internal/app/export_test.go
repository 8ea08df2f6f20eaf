package app

// RefreshTimer reports the location key the refresh job is armed for and the
// number of jobs held by the scheduler.
func (o *Orchestrator) RefreshTimer() (key string, jobs int, err error) {
	err = o.dispatch(func() {
		key = o.timer.armedFor()
		jobs = o.timer.scheduler.Len()
	})
	return key, jobs, err
}
