package renderer

import (
	"encoding/json"
	"fmt"

	"github.com/use-agent/shelfscan/models"
)

// snapshotJS runs inside the page. It returns plain data only, so nothing
// references the live DOM once the evaluation finishes. Missing elements and
// missing attributes are reported as present=false rather than coerced to "".
const snapshotJS = `(sel) => {
	const text = (item, q) => {
		if (!q) return { present: false, value: "" };
		const el = item.querySelector(q);
		if (!el) return { present: false, value: "" };
		return { present: true, value: el.textContent ?? "" };
	};
	const attr = (item, q, name) => {
		if (!q) return { present: false, value: "" };
		const el = item.querySelector(q);
		if (!el) return { present: false, value: "" };
		const v = el.getAttribute(name);
		if (v === null) return { present: false, value: "" };
		return { present: true, value: v };
	};
	return Array.from(document.querySelectorAll(sel.item)).map((item) => ({
		title: text(item, sel.title),
		price: text(item, sel.price),
		image: attr(item, sel.image, sel.imageAttr || "src"),
		link: attr(item, sel.link, "href"),
	}));
}`

// snapshotExpression inlines the selectors into a self-invoking expression
// for clients that evaluate plain expressions rather than functions.
func snapshotExpression(sel models.Selectors) (string, error) {
	arg, err := json.Marshal(sel)
	if err != nil {
		return "", fmt.Errorf("renderer: encode selectors: %w", err)
	}
	return fmt.Sprintf("(%s)(%s)", snapshotJS, arg), nil
}
