package extractor

// Page scripts. Each is a function expression evaluated in the post tab.

// titleJS finds the innermost div holding both the author link and a
// <time>, and returns its class, the link, the timestamp and the texts of
// its siblings (the caption lives there).
const titleJS = `(anchor) => {
	const linkSel = 'a[href="' + anchor + '"]';
	let innermost = null;
	for (const div of document.querySelectorAll('div')) {
		if (!div.querySelector(linkSel) || !div.querySelector('time')) continue;
		let nested = false;
		for (const child of div.querySelectorAll('div')) {
			if (child.querySelector(linkSel) && child.querySelector('time')) {
				nested = true;
				break;
			}
		}
		if (!nested) innermost = div;
	}
	if (!innermost) return null;

	const a = innermost.querySelector(linkSel);
	const t = innermost.querySelector('time');
	const data = {
		topDivClass: innermost.className,
		aHref: a ? a.getAttribute('href') : null,
		aSrc: a ? a.getAttribute('src') : null,
		timeDatetime: t ? t.getAttribute('datetime') : null,
		siblingTexts: []
	};
	const parent = innermost.parentElement;
	if (parent) {
		data.siblingTexts = Array.from(parent.children)
			.filter(el => el !== innermost)
			.map(el => el.textContent.trim())
			.filter(s => s.length > 0);
	}
	return data;
}`

// carouselJS returns every attribute of the carousel images, unique by src
const carouselJS = `() => {
	const seen = new Set();
	const out = [];
	for (const img of document.querySelectorAll('article ul._acay li._acaz img')) {
		const attrs = {};
		for (const a of img.attributes) attrs[a.name] = a.value;
		if (!attrs.src || seen.has(attrs.src)) continue;
		seen.add(attrs.src);
		out.push(attrs);
	}
	return out;
}`

// singleImageJS returns the attributes of the first image that looks like
// post media (alt, crossorigin and src all present)
const singleImageJS = `() => {
	const img = Array.from(document.querySelectorAll('div img'))
		.find(i => i.hasAttribute('alt') && i.hasAttribute('crossorigin') && i.hasAttribute('src'));
	if (!img) return null;
	const attrs = {};
	for (const a of img.attributes) attrs[a.name] = a.value;
	return attrs;
}`

// likesJS returns the like counter of the section with the highest count
const likesJS = `() => {
	function parseLikes(text) {
		let num = parseFloat(text.replace(/[^\d.]/g, ''));
		if (isNaN(num)) return -1;
		if (/\d\s*k\b/i.test(text)) num *= 1e3;
		else if (/\d\s*m\b/i.test(text)) num *= 1e6;
		return num;
	}
	let max = -1;
	let top = null;
	for (const section of document.querySelectorAll('section')) {
		if (!section.querySelector('span') || !section.querySelector('a')) continue;
		const span = Array.from(section.querySelectorAll('span'))
			.find(s => s.innerText && /like/i.test(s.innerText));
		if (!span) continue;
		const text = span.innerText.trim();
		const n = parseLikes(text);
		if (n > max) {
			max = n;
			top = {likesText: text, likesNumber: n};
		}
	}
	return top;
}`

// commentContainerJS finds the scrollable ancestor shared by most comment
// blocks and returns a CSS path to it
const commentContainerJS = `(minMatches) => {
	function scrollable(el) {
		const s = window.getComputedStyle(el);
		const oy = s.overflowY || s.overflow || '';
		return /auto|scroll|overlay/i.test(oy) && el.scrollHeight > el.clientHeight;
	}
	function overflowPotential(el) {
		const s = window.getComputedStyle(el);
		const oy = s.overflowY || s.overflow || '';
		return /auto|scroll|overlay|hidden/i.test(oy);
	}
	function cssPath(el) {
		if (el.id) return '#' + el.id;
		const parts = [];
		let cur = el;
		while (cur && cur.nodeType === 1 && cur.tagName.toLowerCase() !== 'html') {
			let part = cur.tagName.toLowerCase();
			const cls = String(cur.className || '').split(/\s+/).filter(Boolean)[0];
			if (cls) {
				part += '.' + cls.replace(/[^a-zA-Z0-9_-]/g, '');
			} else if (cur.parentElement) {
				part += ':nth-child(' + (Array.from(cur.parentElement.children).indexOf(cur) + 1) + ')';
			}
			parts.unshift(part);
			cur = cur.parentElement;
			if (parts.length > 6) break;
		}
		return parts.length ? parts.join(' > ') : el.tagName.toLowerCase();
	}

	const blocks = Array.from(document.querySelectorAll('div')).filter(div => {
		const profile = div.querySelector('div > div > div');
		const comment = Array.from(div.querySelectorAll('div > div > div'))
			.find(d => !d.querySelector('span a, span time'));
		return !!profile && !!comment;
	});
	if (blocks.length === 0) return null;

	const tally = new Map();
	for (const block of blocks) {
		for (let el = block; el && el !== document.documentElement; el = el.parentElement) {
			const entry = tally.get(el) || {count: 0, scrollable: false, overflow: false};
			entry.count++;
			if (scrollable(el)) entry.scrollable = true;
			if (overflowPotential(el)) entry.overflow = true;
			tally.set(el, entry);
		}
	}

	const candidates = Array.from(tally.entries()).map(([el, m]) => ({
		el, count: m.count, scrollable: m.scrollable, overflow: m.overflow,
		gap: el.scrollHeight - el.clientHeight
	}));
	if (candidates.length === 0) return null;

	candidates.sort((a, b) => {
		if (a.scrollable !== b.scrollable) return a.scrollable ? -1 : 1;
		if (a.count !== b.count) return b.count - a.count;
		if (a.overflow !== b.overflow) return a.overflow ? -1 : 1;
		return b.gap - a.gap;
	});

	let best = candidates.find(c => c.count >= minMatches) || candidates[0];
	if (best.gap <= 0) {
		const positive = candidates.find(c => c.gap > 0 && (c.scrollable || c.overflow));
		if (positive) best = positive;
	}
	return {selector: cssPath(best.el), count: best.count};
}`

// containerMetricsJS reports the scroll position of the element
const containerMetricsJS = `(selector) => {
	const el = document.querySelector(selector);
	if (!el) return null;
	return {scrollTop: el.scrollTop, scrollHeight: el.scrollHeight, clientHeight: el.clientHeight};
}`

// containerScrollJS scrolls the element by dy pixels
const containerScrollJS = `(selector, dy) => {
	const el = document.querySelector(selector);
	if (!el) return false;
	el.scrollBy(0, dy);
	return true;
}`

// commentsJS parses the rendered comment blocks. A block is kept when it
// carries images, or when it has both text and a date. Blocks are unique
// by handle, text and image list.
const commentsJS = `() => {
	const results = [];
	const seen = new Set();
	const likeRe = /\b\d{1,3}(?:,\d{3})*(?:\.\d+)?[kKmM]?\s+likes?\b/i;

	for (const top of document.querySelectorAll('div.html-div')) {
		const profile = top.querySelector('div > div.html-div > div.html-div');
		const comment = Array.from(top.querySelectorAll('div > div.html-div > div.html-div'))
			.find(d => !d.querySelector('span a, span time'));
		if (!profile || !comment) continue;

		const data = {likes: null, handle: null, date: null, comment: null, commentImgs: []};

		const likes = Array.from(top.querySelectorAll('span'))
			.map(s => s.innerText && s.innerText.trim())
			.filter(Boolean)
			.find(t => likeRe.test(t));
		if (likes) data.likes = likes;

		for (const span of profile.querySelectorAll('span')) {
			const a = span.querySelector('a');
			if (a && !data.handle) data.handle = a.innerText.trim();
			const t = span.querySelector('time');
			if (t && !data.date) data.date = t.innerText.trim();
		}

		const text = comment.innerText.trim();
		if (text) data.comment = text;

		data.commentImgs = Array.from(top.querySelectorAll('img'))
			.filter(img => {
				const names = Array.from(img.attributes).map(a => a.name);
				return names.length === 2 && names.includes('class') && names.includes('src');
			})
			.map(img => img.src);

		if (data.commentImgs.length > 0 || (data.comment && data.date)) {
			const key = (data.handle || '') + '::' + (data.comment || '') + '::' + data.commentImgs.join(',');
			if (!seen.has(key)) {
				seen.add(key);
				results.push(data);
			}
		}
	}
	return results;
}`
