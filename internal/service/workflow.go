package service

import (
	"context"

	"event-request-backend/internal/domain"
	"event-request-backend/internal/logger"
	"event-request-backend/internal/workflow"
)

func (e *engine) ExecuteAction(ctx context.Context, requestID, actorID string, action workflow.Action, payload workflow.Payload) (*domain.EventRequest, error) {
	logger.EnterMethod("engine.ExecuteAction", "requestID", requestID, "actorID", actorID, "action", action)

	if err := payload.Validate(action); err != nil {
		logger.ExitMethodWithError("engine.ExecuteAction", err, "reason", "invalid payload")
		return nil, err
	}

	u, err := e.user(ctx, actorID)
	if err != nil {
		logger.ExitMethodWithError("engine.ExecuteAction", err)
		return nil, err
	}

	var before, after *domain.EventRequest
	var change domain.StatusChange
	err = e.withRetry(string(action), func() error {
		req, err := e.load(ctx, requestID)
		if err != nil {
			return err
		}
		actor := domain.ResolveActor(u, req, e.adminAuthorityMin)
		t, err := workflow.Plan(req, actor, action)
		if err != nil {
			return err
		}
		if err := e.authorize(ctx, actorID, action, req.Location); err != nil {
			return err
		}

		next, err := workflow.Apply(req, t, actor, payload, e.now())
		if err != nil {
			return err
		}
		if t.Delete {
			if err := writeErr("delete request", requestID, e.requests.Delete(ctx, requestID, req.Revision)); err != nil {
				return err
			}
			before, after = req, nil
		} else {
			if err := writeErr(string(action), requestID, e.requests.Update(ctx, next, req.Revision)); err != nil {
				return err
			}
			before, after = req, next
		}
		change = lastChange(next)
		return nil
	})
	if err != nil {
		logger.ExitMethodWithError("engine.ExecuteAction", err)
		return nil, err
	}

	e.invalidate(requestID)
	e.metrics.Transition(string(action))
	subject := after
	if subject == nil {
		subject = before
	}
	e.notify(ctx, subject, change, recipients(subject, actorID))

	logger.Audit(requestID, string(action), actorID, "from", change.From, "to", change.To)
	logger.ExitMethod("engine.ExecuteAction", "requestID", requestID, "status", change.To)
	return after, nil
}
