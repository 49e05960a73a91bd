package task

import (
	"sync"

	"github.com/blues/launchpad/internal/errs"
	"github.com/blues/launchpad/internal/logger"
	"github.com/blues/launchpad/internal/model"
	"github.com/panjf2000/ants/v2"
)

// sweep 在协程池中逐个处理项目，等待全部完成后返回成功处理的操作数
func sweep(pool *ants.Pool, projects []*model.Project, fn func(project *model.Project) int) int {
	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		total int
	)
	for _, project := range projects {
		project := project
		wg.Add(1)
		err := pool.Submit(func() {
			defer wg.Done()
			n := fn(project)
			mu.Lock()
			total += n
			mu.Unlock()
		})
		if err != nil {
			wg.Done()
			logger.Error("Failed to submit project %d to pool: %v", project.ID, err)
		}
	}
	wg.Wait()
	return total
}

// attempt 执行一次链上操作，状态不满足的错误只记录调试日志
func attempt(what string, err error) bool {
	if err == nil {
		return true
	}
	if errs.Kind(err) == errs.ErrInvalidState {
		logger.Debug("Skip %s: %v", what, err)
		return false
	}
	logger.Error("Failed to %s: %v", what, err)
	return false
}
