package dummydb

import (
	"sync"

	"github.com/kohlab/pyeongga/core/evaluation"
)

type (
	DB struct {
		evaluation   *evaluationTable
		notification *notificationTable
	}

	evaluationTable struct {
		sync.RWMutex
		table map[int]*evaluation.Evaluation
	}

	notificationTable struct {
		sync.RWMutex
		table map[string]*evaluation.Notification
	}
)

func Open() (*DB, error) {
	db := &DB{
		evaluation:   &evaluationTable{table: make(map[int]*evaluation.Evaluation)},
		notification: &notificationTable{table: make(map[string]*evaluation.Notification)},
	}
	return db, nil
}
