package browser

import (
	"encoding/json"
	"fmt"

	"github.com/ternarybob/colligo/internal/models"
)

// WrapScript wraps a user-supplied script in the execution harness. The
// harness is the reliability boundary for injected code: it races the user
// promise against a timeout, catches both synchronous and asynchronous
// errors, and always resolves to {success, result?, error?, execution_ms}.
//
// The user script runs inside a function body, so `return` yields the
// script result. Scripts returning a promise are awaited.
func WrapScript(userScript string, timeoutMs int) string {
	if timeoutMs <= 0 {
		timeoutMs = 30000
	}
	payload, _ := json.Marshal(userScript)

	return fmt.Sprintf(`(async () => {
	const __started = Date.now();
	const __timeoutMs = %d;
	const __script = %s;
	const __timeout = new Promise((resolve) => {
		setTimeout(() => resolve({ __timedOut: true }), __timeoutMs);
	});
	const __user = (async () => {
		const fn = new Function(__script);
		return await fn();
	})();
	try {
		const outcome = await Promise.race([__user, __timeout]);
		if (outcome && outcome.__timedOut === true) {
			return { success: false, error: "timeout", execution_ms: Date.now() - __started };
		}
		return { success: true, result: outcome === undefined ? null : outcome, execution_ms: Date.now() - __started };
	} catch (err) {
		return { success: false, error: String(err && err.message ? err.message : err), execution_ms: Date.now() - __started };
	}
})()`, timeoutMs, payload)
}

// ParseScriptResult decodes the harness envelope. Anything that does not
// match the envelope becomes a failed ScriptResult rather than an error,
// so a misbehaving page cannot fail the crawl.
func ParseScriptResult(raw json.RawMessage) *models.ScriptResult {
	if len(raw) == 0 {
		return &models.ScriptResult{
			Success: false,
			Error:   "script returned no result",
		}
	}

	var envelope struct {
		Success     bool        `json:"success"`
		Result      interface{} `json:"result"`
		Error       string      `json:"error"`
		ExecutionMs int64       `json:"execution_ms"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return &models.ScriptResult{
			Success: false,
			Error:   fmt.Sprintf("unparseable script result: %v", err),
		}
	}

	return &models.ScriptResult{
		Success:     envelope.Success,
		Result:      envelope.Result,
		Error:       envelope.Error,
		ExecutionMs: envelope.ExecutionMs,
	}
}
