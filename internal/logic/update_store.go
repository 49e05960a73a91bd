package logic

import (
	"github.com/blues/launchpad/internal/errs"
	"github.com/blues/launchpad/internal/model"
)

// insertUpdate 将项目的下一次自动转换放入 block，满了就向后顺延
func (e *Engine) insertUpdate(tx *txContext, block uint64, projectID uint32, updateType model.UpdateType, decision model.FundingDecision) error {
	update := model.ProjectUpdate{ProjectID: projectID, UpdateType: updateType, Decision: decision}

	for attempt := 0; attempt < e.cfg.MaxProjectsToUpdateInsertionAttempts; attempt++ {
		target := block + uint64(attempt)
		updates, err := tx.store.DueUpdates(target)
		if err != nil {
			return err
		}
		if len(updates) >= e.cfg.MaxProjectsToUpdatePerBlock {
			continue
		}
		return tx.store.SaveDueUpdates(target, append(updates, update))
	}

	return errs.New(errs.ErrCapacityExceeded, "TooManyInsertionAttempts: 项目 %d 无法安排 %s (从区块 %d 起)", projectID, updateType, block)
}

// removeUpdate 移除项目尚未执行的自动转换
func (e *Engine) removeUpdate(tx *txContext, projectID uint32) error {
	block, found, err := tx.store.FindDueUpdate(projectID)
	if err != nil || !found {
		return err
	}

	updates, err := tx.store.DueUpdates(block)
	if err != nil {
		return err
	}
	kept := updates[:0]
	for _, update := range updates {
		if update.ProjectID != projectID {
			kept = append(kept, update)
		}
	}
	return tx.store.SaveDueUpdates(block, kept)
}

// PendingUpdate 查询项目下一次自动转换所在区块
func (e *Engine) PendingUpdate(projectID uint32) (uint64, *model.ProjectUpdate, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	block, found, err := e.store.FindDueUpdate(projectID)
	if err != nil || !found {
		return 0, nil, err
	}
	updates, err := e.store.DueUpdates(block)
	if err != nil {
		return 0, nil, err
	}
	for i := range updates {
		if updates[i].ProjectID == projectID {
			return block, &updates[i], nil
		}
	}
	return 0, nil, nil
}
