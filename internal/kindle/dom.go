package kindle

// Scripts evaluated inside the notebook page. The selectors follow the
// markup Amazon currently serves: each sidebar book is a
// .kp-notebook-library-each-book element whose id is the ASIN, and every
// rendered highlight row carries #highlight / #note / #kp-annotation-location
// children.

const jsLibraryPresent = `(function() {
	return document.querySelector('#kp-notebook-library') !== null;
})()`

const jsListBooks = `(function() {
	const books = [];
	document.querySelectorAll('.kp-notebook-library-each-book').forEach(el => {
		const titleEl = el.querySelector('h2');
		const authorEl = el.querySelector('p.kp-notebook-searchable');

		const title = titleEl ? titleEl.textContent.trim() : '';
		let author = authorEl ? authorEl.textContent.trim() : '';
		if (author.toLowerCase().startsWith('by:')) {
			author = author.substring(3).trim();
		}

		if (el.id && title) {
			books.push({asin: el.id, title: title, author: author});
		}
	});
	return books;
})()`

// jsFingerprint returns a cheap signature of the visible highlight panel,
// used to detect that the panel finished re-rendering after a selection.
const jsFingerprint = `(function() {
	const el = document.querySelector('#highlight');
	return el ? el.textContent.trim().substring(0, 80) : '';
})()`

const jsExtractHighlights = `(function() {
	const highlights = [];
	const seen = new Set();

	document.querySelectorAll('.a-row.a-spacing-base').forEach(container => {
		const highlightEl = container.querySelector('#highlight');
		if (!highlightEl) return;

		const text = highlightEl.textContent.trim();
		if (!text || seen.has(text)) return;
		seen.add(text);

		const noteEl = container.querySelector('#note');
		const locationEl = container.querySelector('#kp-annotation-location');

		highlights.push({
			text: text,
			note: noteEl ? noteEl.textContent.trim() : '',
			location: locationEl ? (locationEl.value || locationEl.textContent.trim()) : ''
		});
	});

	const nextPageEl = document.querySelector('.kp-notebook-annotations-next-page-start');
	const hasMore = !!(nextPageEl && nextPageEl.value && nextPageEl.value.length > 0);

	return {highlights: highlights, hasMore: hasMore};
})()`

const jsClickNextPage = `(function() {
	const nextBtn = document.querySelector('.kp-notebook-annotations-paging a[href*="token"]');
	if (nextBtn) {
		nextBtn.click();
		return true;
	}

	const nextPageInput = document.querySelector('.kp-notebook-annotations-next-page-start');
	if (nextPageInput && nextPageInput.value) {
		const form = nextPageInput.closest('form');
		if (form) {
			form.submit();
			return true;
		}
	}

	return false;
})()`
