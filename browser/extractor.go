package browser

// extractorJS installs the in-page preview extractor. It is idempotent: a
// second injection into the same document is a no-op. The extractor gathers
// OpenGraph/meta preview data and, failing that, probes for the largest
// rendered image until its wait budget runs out. Progress is exposed through
// window.__tabharvest.status() so the agent can poll without re-entering.
const extractorJS = `() => {
	if (window.__tabharvest) return true;
	window.__tabharvest = {
		completed: false,
		data: null,
		running: false,
		start(maxWaitMs, force) {
			if (force) { this.completed = false; this.data = null; }
			if (this.completed || this.running) return;
			this.running = true;
			const meta = (n) => {
				const el = document.querySelector('meta[property="' + n + '"],meta[name="' + n + '"]');
				return (el && el.content) ? el.content.trim() : '';
			};
			const title = meta('og:title') || document.title || '';
			const description = meta('og:description') || meta('description') || '';
			let image = meta('og:image') || meta('twitter:image') || meta('twitter:image:src') || '';
			const finish = () => {
				this.data = {
					url: location.href,
					title: title,
					description: description,
					image: image,
					is_doc_card: image === '' && document.images.length === 0,
					is_screenshot: false
				};
				this.completed = true;
				this.running = false;
			};
			if (image !== '') { finish(); return; }
			const deadline = Date.now() + maxWaitMs;
			const probe = () => {
				let best = '', bestArea = 0;
				for (const img of document.images) {
					const area = img.naturalWidth * img.naturalHeight;
					if (img.currentSrc && img.naturalWidth >= 200 && area > bestArea) {
						best = img.currentSrc;
						bestArea = area;
					}
				}
				if (best !== '') { image = best; finish(); return; }
				if (Date.now() >= deadline) { finish(); return; }
				setTimeout(probe, 250);
			};
			probe();
		},
		status() {
			return { completed: this.completed, data: this.data };
		}
	};
	return true;
}`

// startJS kicks off one extraction run. Parameters are spliced in by the
// agent; the call returns immediately and the run is observed via statusJS.
const startJS = `(maxWaitMs, force) => { window.__tabharvest.start(maxWaitMs, force); return true; }`

// statusJS reads the extractor's current state.
const statusJS = `() => window.__tabharvest ? window.__tabharvest.status() : { completed: false, data: null }`
